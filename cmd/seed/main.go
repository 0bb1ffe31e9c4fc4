package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/catalog"
	"serenity-booking/internal/config"
	"serenity-booking/internal/db"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/repository/customer"
	"serenity-booking/internal/repository/order"
	"serenity-booking/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("seed")

	services, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	n, err := seed.Apply(ctx, order.NewPostgres(pool, logger), customer.NewPostgres(pool, logger), services, time.Now().UTC())
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.Int("orders", n))
}

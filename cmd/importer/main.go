package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/config"
	"serenity-booking/internal/db"
	"serenity-booking/internal/importer"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/repository/order"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to an orders table CSV export")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, order.NewPostgres(pool, logger), logger)

	start := time.Now()
	res, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err), zap.Int("created", res.Created), zap.Int("updated", res.Updated))
	}

	logger.Info("orders imported",
		zap.String("file", filePath),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)
}

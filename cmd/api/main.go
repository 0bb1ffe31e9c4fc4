package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serenity-booking/internal/catalog"
	"serenity-booking/internal/config"
	"serenity-booking/internal/db"
	"serenity-booking/internal/httpserver"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/payment"
	customerrepo "serenity-booking/internal/repository/customer"
	orderrepo "serenity-booking/internal/repository/order"
	visitorrepo "serenity-booking/internal/repository/visitor"
	adminsvc "serenity-booking/internal/service/admin"
	cartsvc "serenity-booking/internal/service/cart"
	checkoutsvc "serenity-booking/internal/service/checkout"
	customersvc "serenity-booking/internal/service/customer"
	ordersvc "serenity-booking/internal/service/order"
	reconcilesvc "serenity-booking/internal/service/reconcile"
	visitorsvc "serenity-booking/internal/service/visitor"
	"serenity-booking/internal/session"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("api")

	// Money goes over the wire as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal("load catalog", zap.String("file", cfg.CatalogFile), zap.Error(err))
	}

	var visitorStore visitorrepo.Repository
	switch cfg.VisitorStore {
	case "postgres":
		visitorStore = visitorrepo.NewPostgres(dbpool, logger)
	case "sqlite":
		var sqlDB *sql.DB
		sqlDB, err = db.ConnectSQLite(ctx, cfg.VisitorSQLitePath)
		if err != nil {
			logger.Fatal("open visitor sqlite store", zap.String("path", cfg.VisitorSQLitePath), zap.Error(err))
		}
		defer sqlDB.Close()
		visitorStore = visitorrepo.NewSQLite(sqlDB, logger)
	case "cookie":
		logger.Info("visitor profiles kept in cookies only")
	default:
		logger.Fatal("unknown VISITOR_STORE", zap.String("value", cfg.VisitorStore))
	}

	gateway := payment.NewGateway(payment.StripeConfig{
		SecretKey:   cfg.StripeSecretKey,
		APIURL:      cfg.StripeAPIURL,
		Currency:    cfg.Currency,
		Site:        cfg.SiteID,
		Environment: cfg.Environment,
		Timeout:     cfg.GatewayTimeout,
	}, logger)
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; checkout will report payment system not configured")
	}

	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	customerService := customersvc.New(customerrepo.NewPostgres(dbpool, logger), logger)
	visitorService := visitorsvc.New(logger)
	cartService := cartsvc.New(cat, visitorService, logger)
	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Gateway:   gateway,
		Orders:    orderRepo,
		Catalog:   cat,
		Profiles:  visitorService,
		Carts:     cartService,
		Customers: customerService,
	}, checkoutsvc.Options{
		Site:         cfg.SiteID,
		Environment:  cfg.Environment,
		Currency:     cat.Currency(),
		ReturnURL:    cfg.ReturnURL(),
		StoreTimeout: cfg.StoreTimeout,
	}, logger)

	deps := httpserver.Deps{
		Catalog:   cat,
		Visitors:  visitorService,
		Carts:     cartService,
		Checkout:  checkoutService,
		Webhooks:  payment.NewWebhookVerifier(cfg.StripeWebhookSecret),
		Reconcile: reconcilesvc.New(orderRepo, checkoutService, logger),
		Orders:    ordersvc.New(orderRepo, cfg.StoreTimeout, logger),
		Customers: customerService,

		VisitorStore:  visitorStore,
		SecureCookies: cfg.IsProduction(),
		StoreTimeout:  cfg.StoreTimeout,

		Flags:          cfg.Flags(),
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
	switch {
	case cfg.SessionSecret != "":
		signer, err := session.NewSigner([]byte(cfg.SessionSecret))
		if err != nil {
			logger.Fatal("SESSION_SECRET", zap.Error(err))
		}
		deps.CookieSigner = signer
	case cfg.IsProduction():
		logger.Fatal("SESSION_SECRET is required in production")
	}
	if cfg.AdminJWTSecret != "" {
		deps.Admin = adminsvc.NewAuthenticator(cfg.AdminJWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminTokenTTL)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

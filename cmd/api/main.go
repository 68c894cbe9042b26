package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/CarlusInnocent/HotPOS/api/routes"
	"github.com/CarlusInnocent/HotPOS/internal/auth"
	"github.com/CarlusInnocent/HotPOS/internal/branches"
	"github.com/CarlusInnocent/HotPOS/internal/catalog"
	"github.com/CarlusInnocent/HotPOS/internal/partners"
	"github.com/CarlusInnocent/HotPOS/internal/purchases"
	"github.com/CarlusInnocent/HotPOS/internal/refunds"
	"github.com/CarlusInnocent/HotPOS/internal/reports"
	"github.com/CarlusInnocent/HotPOS/internal/returns"
	"github.com/CarlusInnocent/HotPOS/internal/sales"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/internal/transfers"
	"github.com/CarlusInnocent/HotPOS/internal/users"
	"github.com/CarlusInnocent/HotPOS/pkg/auth/session"
	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/metrics"
	"github.com/CarlusInnocent/HotPOS/pkg/migrate"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox"
	"github.com/CarlusInnocent/HotPOS/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	gormDB := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(gormDB), logg)

	userRepo := users.NewRepository(gormDB)
	usersService, err := users.NewService(userRepo, cfg.Password)
	if err != nil {
		fatal(logg, "users service", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		fatal(logg, "auth service", err)
	}

	branchesService, err := branches.NewService(branches.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "branches service", err)
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "catalog service", err)
	}
	partnersService, err := partners.NewService(partners.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "partners service", err)
	}

	stockLedger, err := stock.NewLedger(stock.NewRepository(gormDB), dbClient, events, ledgerMetrics, logg, cfg.Inventory.LowStockThreshold)
	if err != nil {
		fatal(logg, "stock ledger", err)
	}
	serialsService, err := serials.NewService(serials.NewRepository(gormDB), ledgerMetrics, logg)
	if err != nil {
		fatal(logg, "serials service", err)
	}

	purchasesService, err := purchases.NewService(purchases.NewRepository(gormDB), dbClient, stockLedger, serialsService, events, logg)
	if err != nil {
		fatal(logg, "purchases service", err)
	}
	salesRepo := sales.NewRepository(gormDB)
	salesService, err := sales.NewService(salesRepo, dbClient, stockLedger, serialsService, events, ledgerMetrics, logg, cfg.Inventory.SequencePrefixWidth)
	if err != nil {
		fatal(logg, "sales service", err)
	}
	transfersService, err := transfers.NewService(transfers.NewRepository(gormDB), dbClient, stockLedger, serialsService, events, logg)
	if err != nil {
		fatal(logg, "transfers service", err)
	}
	returnsService, err := returns.NewService(returns.NewRepository(gormDB), dbClient, stockLedger, serialsService, events, logg)
	if err != nil {
		fatal(logg, "returns service", err)
	}
	refundsService, err := refunds.NewService(refunds.NewRepository(gormDB), salesRepo, dbClient, stockLedger, serialsService, events, logg)
	if err != nil {
		fatal(logg, "refunds service", err)
	}
	reportsService, err := reports.NewService(reports.NewRepository(gormDB), stockLedger, serialsService, redisClient, cfg.Inventory.ReportsCacheTTL, logg)
	if err != nil {
		fatal(logg, "reports service", err)
	}

	router := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DBPinger:  dbClient,
		Redis:     redisClient,
		Sessions:  sessionManager,
		Metrics:   registry,
		Auth:      authService,
		Users:     usersService,
		Branches:  branchesService,
		Catalog:   catalogService,
		Partners:  partnersService,
		Stock:     stockLedger,
		Serials:   serialsService,
		Purchases: purchasesService,
		Sales:     salesService,
		Transfers: transfersService,
		Returns:   returnsService,
		Refunds:   refundsService,
		Reports:   reportsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func fatal(logg *logger.Logger, what string, err error) {
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}

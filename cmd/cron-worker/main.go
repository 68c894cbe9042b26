package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CarlusInnocent/HotPOS/internal/cron"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/internal/transfers"
	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/metrics"
	"github.com/CarlusInnocent/HotPOS/pkg/migrate"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox"
	"github.com/CarlusInnocent/HotPOS/pkg/redis"
)

const lockKeyFormat = "hotpos:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)

	registry := cron.NewRegistry()

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry.Register(retentionJob)

	if cfg.Inventory.TransferAutoExpire > 0 {
		events := outbox.NewService(outboxRepo, logg)
		ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

		stockLedger, err := stock.NewLedger(stock.NewRepository(gormDB), dbClient, events, ledgerMetrics, logg, cfg.Inventory.LowStockThreshold)
		if err != nil {
			logg.Error(context.Background(), "failed to create stock ledger", err)
			os.Exit(1)
		}
		serialsService, err := serials.NewService(serials.NewRepository(gormDB), ledgerMetrics, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create serials service", err)
			os.Exit(1)
		}
		transfersRepo := transfers.NewRepository(gormDB)
		transfersService, err := transfers.NewService(transfersRepo, dbClient, stockLedger, serialsService, events, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create transfers service", err)
			os.Exit(1)
		}

		expireJob, err := cron.NewTransferExpireJob(cron.TransferExpireJobParams{
			Logger:    logg,
			Transfers: transfersRepo,
			Rejector:  transfersService,
			MaxAge:    cfg.Inventory.TransferAutoExpire,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create transfer expire job", err)
			os.Exit(1)
		}
		registry.Register(expireJob)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

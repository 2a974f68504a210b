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

	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/cron"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/instance"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
	"github.com/exclusivemerch/store-backend/pkg/migrate"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	workerID := instance.GetID()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    workerID,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+env), workerID, cfg.Reaper.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	reaper, err := cron.NewPendingOrderReaper(cron.PendingOrderReaperParams{
		Logger:     logg,
		DB:         dbClient,
		Orders:     orders.NewRepository(gormDB),
		Stock:      stock.NewRepository(gormDB),
		Cart:       cart.NewRepository(gormDB),
		Outbox:     outbox.NewService(outboxRepo, logg),
		MaxPending: cfg.Reaper.MaxOrderPending,
	})
	requireResource(ctx, logg, "pending order reaper", err)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	requireResource(ctx, logg, "outbox retention job", err)

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reaper, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reaper.Interval,
	})
	requireResource(ctx, logg, "cron scheduler", err)

	logg.Info(logg.WithFields(ctx, map[string]any{
		"interval":    cfg.Reaper.Interval.String(),
		"max_pending": cfg.Reaper.MaxOrderPending.String(),
	}), "starting cron worker")

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/exclusivemerch/store-backend/internal/analytics/router"
	"github.com/exclusivemerch/store-backend/internal/analytics/worker"
	"github.com/exclusivemerch/store-backend/internal/analytics/writer"
	"github.com/exclusivemerch/store-backend/pkg/bigquery"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/instance"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox/idempotency"
	"github.com/exclusivemerch/store-backend/pkg/pubsub"
	"github.com/exclusivemerch/store-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer closeQuietly(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg,
		pubsub.WithSubscriptions(cfg.PubSub.AnalyticsSubscription),
	)
	requireResource(ctx, logg, "pubsub", err)
	defer closeQuietly(logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)
	defer closeQuietly(logg, "bigquery", bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "analytics subscription", errors.New("MERCH_PUBSUB_ANALYTICS_SUBSCRIPTION not configured"))
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	rows, err := writer.New(bqClient, writer.Config{OrderEventsTable: cfg.BigQuery.OrderEventsTable})
	requireResource(ctx, logg, "analytics writer", err)

	eventRouter, err := router.NewRouter(rows, logg, nil)
	requireResource(ctx, logg, "analytics router", err)

	consumer, err := worker.NewConsumer(subscription, eventRouter, dedupe, logg)
	requireResource(ctx, logg, "analytics consumer", err)

	logg.Info(ctx, "analytics worker ready")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}

	// Rows buffered before the shutdown signal still go out.
	flushCtx := context.WithoutCancel(ctx)
	if err := rows.Flush(flushCtx); err != nil {
		logg.Error(flushCtx, "failed to flush buffered analytics rows", err)
	}
	logg.Info(flushCtx, "analytics worker shutting down gracefully")
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "failed to close "+name, err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

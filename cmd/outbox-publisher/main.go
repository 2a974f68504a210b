package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/instance"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
	"github.com/exclusivemerch/store-backend/pkg/migrate"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
	"github.com/exclusivemerch/store-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered outbox event back to the queue and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	fatalIf(context.Background(), logg, "failed to load config", err)
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

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(ctx, logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	dlqRepo := outbox.NewDLQRepository(dbClient.DB())

	if *requeue != "" {
		fatalIf(ctx, logg, "requeue failed", requeueEvent(ctx, dlqRepo, *requeue))
		logg.Info(logg.WithField(ctx, "event_id", *requeue), "dead-lettered event requeued")
		return
	}

	fatalIf(ctx, logg, "failed to run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg,
		pubsub.WithTopics(cfg.PubSub.OrdersTopic),
	)
	fatalIf(ctx, logg, "failed to bootstrap pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	fatalIf(ctx, logg, "failed to build event registry", err)

	publisher, err := NewPublisher(PublisherParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	fatalIf(ctx, logg, "failed to create outbox publisher", err)

	logg.Info(ctx, "starting outbox publisher")
	if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatalIf(ctx, logg, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func requeueEvent(ctx context.Context, repo *outbox.DLQRepository, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", raw, err)
	}
	return repo.Requeue(ctx, eventID)
}

func fatalIf(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}

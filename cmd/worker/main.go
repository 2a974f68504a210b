// Command worker delivers order notification mail from the notifications
// subscription.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/exclusivemerch/store-backend/internal/notifications"
	"github.com/exclusivemerch/store-backend/internal/users"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/instance"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/mailer"
	"github.com/exclusivemerch/store-backend/pkg/outbox/idempotency"
	"github.com/exclusivemerch/store-backend/pkg/outbox/registry"
	"github.com/exclusivemerch/store-backend/pkg/pubsub"
	"github.com/exclusivemerch/store-backend/pkg/redis"
)

const serviceKind = "worker"

type pinger interface {
	Ping(ctx context.Context) error
}

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
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer closeQuietly(logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer closeQuietly(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg,
		pubsub.WithSubscriptions(cfg.PubSub.NotificationSubscription),
	)
	requireResource(ctx, logg, "pubsub", err)
	defer closeQuietly(logg, "pubsub", pubsubClient.Close)

	for name, dep := range map[string]pinger{"database": dbClient, "redis": redisClient, "pubsub": pubsubClient} {
		requireResource(ctx, logg, name+" ping", dep.Ping(ctx))
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	requireResource(ctx, logg, "event registry", err)

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Users:         users.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		Mailer:        mailer.New(cfg.SMTP, logg),
		Subscription:  pubsubClient.NotificationSubscription(),
		Idempotency:   dedupe,
		OperatorEmail: cfg.Operator.Email,
		Logger:        logg,
	})
	requireResource(ctx, logg, "notification consumer", err)

	logg.Info(ctx, "starting notifications worker")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification consumer stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "failed to close "+name, err)
	}
}

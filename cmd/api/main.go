package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exclusivemerch/store-backend/api/controllers"
	"github.com/exclusivemerch/store-backend/api/routes"
	"github.com/exclusivemerch/store-backend/internal/address"
	"github.com/exclusivemerch/store-backend/internal/analytics"
	"github.com/exclusivemerch/store-backend/internal/auth"
	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/catalog"
	"github.com/exclusivemerch/store-backend/internal/checkout"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/internal/users"
	razorpaywebhook "github.com/exclusivemerch/store-backend/internal/webhooks/razorpay"
	"github.com/exclusivemerch/store-backend/pkg/bigquery"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/invoice"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
	"github.com/exclusivemerch/store-backend/pkg/migrate"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/exclusivemerch/store-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
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

	gateway, err := razorpay.NewFromConfig(cfg.Razorpay)
	requireResource(ctx, logg, "razorpay client", err)

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	addressRepo := address.NewRepository(gormDB)
	itemsRepo := catalog.NewRepository(gormDB)
	stockRepo := stock.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		UserRepo:       usersRepo,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
	})
	requireResource(ctx, logg, "register service", err)

	addressService, err := address.NewService(addressRepo)
	requireResource(ctx, logg, "address service", err)

	catalogService, err := catalog.NewService(itemsRepo, stockRepo, dbClient)
	requireResource(ctx, logg, "catalog service", err)

	cartService, err := cart.NewService(cartRepo, itemsRepo, stockRepo, ordersRepo)
	requireResource(ctx, logg, "cart service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:                dbClient,
		Users:             usersRepo,
		Addresses:         addressRepo,
		Cart:              cartRepo,
		Stock:             stockRepo,
		Orders:            ordersRepo,
		Gateway:           gateway,
		Outbox:            emitter,
		Config:            cfg.Checkout,
		TransferAccountID: cfg.Razorpay.TransferAccountID,
		Logger:            logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   emitter,
		Gateway:  gateway,
		Users:    usersRepo,
		Items:    itemsRepo,
		Invoices: invoice.NewRenderer(cfg.App.StoreName),
		Currency: cfg.Checkout.Currency,
		Logger:   logg,
	})
	requireResource(ctx, logg, "orders service", err)

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Orders:            ordersRepo,
		Stock:             stockRepo,
		TransactionRunner: dbClient,
		Outbox:            emitter,
		Gateway:           gateway,
		Metrics:           metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:            logg,
	})
	requireResource(ctx, logg, "razorpay webhook service", err)

	webhookGuard, err := razorpaywebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "razorpay")
	requireResource(ctx, logg, "razorpay webhook guard", err)

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	// Sales reporting is optional; the route answers 503 without BigQuery.
	var analyticsService analytics.Service
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("bigquery unavailable, sales analytics disabled: %v", err))
	} else {
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "failed to close bigquery client", err)
			}
		}()
		analyticsService, err = analytics.NewService(bqClient, cfg.BigQuery.OrderEventsTable)
		requireResource(ctx, logg, "analytics service", err)
		readiness["bigquery"] = bqClient
	}

	router := routes.NewRouter(routes.Params{
		Config:       cfg,
		Logger:       logg,
		Readiness:    readiness,
		Metrics:      prometheus.DefaultGatherer,
		Redis:        redisClient,
		Auth:         authService,
		Register:     registerService,
		Address:      addressService,
		Catalog:      catalogService,
		Cart:         cartService,
		Checkout:     checkoutService,
		Orders:       ordersService,
		Analytics:    analyticsService,
		Webhooks:     webhookService,
		WebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exclusivemerch/store-backend/api/controllers"
	analyticscontrollers "github.com/exclusivemerch/store-backend/api/controllers/analytics"
	authcontrollers "github.com/exclusivemerch/store-backend/api/controllers/auth"
	cartcontrollers "github.com/exclusivemerch/store-backend/api/controllers/cart"
	catalogcontrollers "github.com/exclusivemerch/store-backend/api/controllers/catalog"
	ordercontrollers "github.com/exclusivemerch/store-backend/api/controllers/orders"
	webhookcontrollers "github.com/exclusivemerch/store-backend/api/controllers/webhooks"
	"github.com/exclusivemerch/store-backend/api/middleware"
	"github.com/exclusivemerch/store-backend/internal/address"
	"github.com/exclusivemerch/store-backend/internal/analytics"
	"github.com/exclusivemerch/store-backend/internal/auth"
	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/catalog"
	"github.com/exclusivemerch/store-backend/internal/checkout"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/redis"
)

// Params carries everything the HTTP surface is built from. Analytics is
// optional; without it the sales route answers 503.
type Params struct {
	Config       *config.Config
	Logger       *logger.Logger
	Readiness    map[string]controllers.Pinger
	Metrics      prometheus.Gatherer
	Redis        *redis.Client
	Auth         auth.Service
	Register     auth.RegisterService
	Address      address.Service
	Catalog      catalog.Service
	Cart         cart.Service
	Checkout     checkout.Service
	Orders       orders.Service
	Analytics    analytics.Service
	Webhooks     webhookcontrollers.RazorpayWebhookService
	WebhookGuard webhookcontrollers.RazorpayWebhookGuard
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	limits := cfg.RateLimit
	loginPolicy := middleware.ThrottlePolicy{
		Name:   "login",
		Window: limits.LoginWindow,
		Limits: map[middleware.ThrottleScope]int{
			middleware.ScopeIP:    limits.LoginIPLimit,
			middleware.ScopeEmail: limits.LoginEmailLimit,
		},
	}
	registerPolicy := middleware.ThrottlePolicy{
		Name:   "register",
		Window: limits.RegisterWindow,
		Limits: map[middleware.ThrottleScope]int{
			middleware.ScopeIP:    limits.RegisterIPLimit,
			middleware.ScopeEmail: limits.RegisterEmailLimit,
		},
	}
	checkoutPolicy := middleware.ThrottlePolicy{
		Name:   "checkout",
		Window: limits.CheckoutWindow,
		Limits: map[middleware.ThrottleScope]int{middleware.ScopeUser: limits.CheckoutUserLimit},
	}

	// Typed nil pointers must not reach the interface-typed middleware params.
	var (
		rateStore        middleware.RateLimiterStore
		idempotencyStore middleware.ReplayStore
	)
	if p.Redis != nil {
		rateStore = p.Redis
		idempotencyStore = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.Readiness, logg))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(p.Webhooks, p.WebhookGuard, cfg.Razorpay.WebhookSecret, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.With(middleware.Throttle(loginPolicy, rateStore, logg)).Post("/login", authcontrollers.AuthLogin(p.Auth, logg))
		r.With(middleware.Throttle(registerPolicy, rateStore, logg)).Post("/register", authcontrollers.AuthRegister(p.Register, logg))
	})

	r.Route("/api/v1/items", func(r chi.Router) {
		r.Get("/", catalogcontrollers.ListItems(p.Catalog, logg))
		r.Get("/{itemID}", catalogcontrollers.GetItem(p.Catalog, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/api/v1/me/address", func(r chi.Router) {
			r.Get("/", controllers.AddressGet(p.Address, logg))
			r.Put("/", controllers.AddressSave(p.Address, logg))
		})

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
			r.Delete("/", cartcontrollers.CartEmpty(p.Cart, logg))
			r.Put("/items", cartcontrollers.CartUpsert(p.Cart, logg))
			r.Delete("/items/{itemID}", cartcontrollers.CartRemove(p.Cart, logg))
			r.With(middleware.Throttle(checkoutPolicy, rateStore, logg)).Post("/checkout", cartcontrollers.CartCheckout(p.Checkout, cfg.Razorpay.KeyID, cfg.Checkout.Currency, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderToken}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderToken}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Get("/{orderToken}/invoice", ordercontrollers.Invoice(p.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", catalogcontrollers.CreateItem(p.Catalog, logg))
			r.Put("/{itemID}/stock", catalogcontrollers.SetStock(p.Catalog, logg))
			r.Delete("/{itemID}", catalogcontrollers.DeleteItem(p.Catalog, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(p.Orders, logg))
			r.Patch("/{orderToken}/shipping", ordercontrollers.AdminUpdateShipping(p.Orders, logg))
		})
		r.Get("/analytics/sales", analyticscontrollers.AdminSales(p.Analytics, logg))
	})

	return r
}

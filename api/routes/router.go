package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ordering-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/ordering-backend/api/controllers/cart"
	couponcontrollers "github.com/angelmondragon/ordering-backend/api/controllers/coupons"
	ordercontrollers "github.com/angelmondragon/ordering-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/ordering-backend/api/controllers/payments"
	refundcontrollers "github.com/angelmondragon/ordering-backend/api/controllers/refunds"
	webhookcontrollers "github.com/angelmondragon/ordering-backend/api/controllers/webhooks"
	"github.com/angelmondragon/ordering-backend/api/middleware"
	"github.com/angelmondragon/ordering-backend/internal/cart"
	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/internal/refunds"
	stripewebhook "github.com/angelmondragon/ordering-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/redis"
	"github.com/angelmondragon/ordering-backend/pkg/stripe"
)

// Deps are the services the HTTP surface is built from. Stripe fields are
// nil when Square is the configured processor.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger
	DB     controllers.Pinger
	Redis  *redis.Client

	Cart        cart.Service
	Coupons     coupons.Service
	Initiator   *payments.Initiator
	Outcomes    *payments.OutcomeHandler
	RetryPolicy *payments.RetryPolicy
	Orders      orders.Service
	Refunds     refunds.Service

	StripeClient       *stripe.Client
	StripeWebhooks     *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard

	// Metrics serves /metrics; defaults to the global Prometheus registry.
	Metrics http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	var (
		idempotencyStore middleware.ResponseStore
		limiter          *redis.Client
		readiness        = map[string]controllers.Pinger{}
	)
	if d.Redis != nil {
		idempotencyStore = d.Redis
		limiter = d.Redis
		readiness["redis"] = d.Redis
	}
	if d.DB != nil {
		readiness["db"] = d.DB
	}
	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigin),
	)

	initiatePolicy := middleware.NewRateLimitPolicy(
		"payments",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimitPerIP,
		cfg.Checkout.RateLimitPerCart,
	)
	outcomePolicy := middleware.NewRateLimitPolicy(
		"outcome",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimitPerIP,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", metricsHandler)

	if d.StripeClient != nil && d.StripeWebhooks != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhooks, d.StripeClient, d.StripeWebhookGuard, logg))
		})
	}

	// the outcome callback is keyed by payment id, not by cart session,
	// so it stays reachable from a browser that lost its session header
	r.With(rateLimit(outcomePolicy, limiter, logg)).
		Post("/api/v1/payments/outcome", paymentcontrollers.Outcome(d.Outcomes, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CartSession(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(d.Cart, logg))
			r.Delete("/", cartcontrollers.Clear(d.Cart, logg))
			r.Post("/items", cartcontrollers.AddItem(d.Cart, logg))
			r.Patch("/items/{dishId}", cartcontrollers.UpdateItem(d.Cart, logg))
			r.Post("/coupon", cartcontrollers.ApplyCoupon(d.Cart, logg))
			r.Delete("/coupon", cartcontrollers.RemoveCoupon(d.Cart, logg))
		})
		r.Post("/coupons/preview", couponcontrollers.Preview(d.Coupons, d.Cart, logg))
		r.Route("/payments", func(r chi.Router) {
			r.With(rateLimit(initiatePolicy, limiter, logg)).Post("/", paymentcontrollers.Initiate(d.Initiator, logg))
			r.Get("/{paymentId}/retry-status", paymentcontrollers.RetryStatus(d.RetryPolicy, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.StaffRoleAdmin, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/refunds", func(r chi.Router) {
			r.Post("/", refundcontrollers.Create(d.Refunds, logg))
			r.Get("/", refundcontrollers.List(d.Refunds, logg))
			r.Get("/{refundId}", refundcontrollers.Get(d.Refunds, logg))
			r.Post("/{refundId}/approve", refundcontrollers.Approve(d.Refunds, logg))
			r.Post("/{refundId}/reject", refundcontrollers.Reject(d.Refunds, logg))
			r.Post("/{refundId}/process", refundcontrollers.Process(d.Refunds, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", ordercontrollers.AdminDetail(d.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdvanceStatus(d.Orders, logg))
		})
	})

	return r
}

func rateLimit(policy middleware.RateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(policy, client, logg)
}

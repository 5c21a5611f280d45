// Package bootstrap assembles the checkout services shared by the api and cron-worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordering-backend/internal/cart"
	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/internal/refunds"
	stripewebhook "github.com/angelmondragon/ordering-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/ordering-backend/pkg/redis"
	"github.com/angelmondragon/ordering-backend/pkg/square"
	"github.com/angelmondragon/ordering-backend/pkg/stripe"
)

// Params are the process-level resources the services are built on.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Registry prometheus.Registerer
}

// Services is the assembled checkout core.
type Services struct {
	Attempts    payments.Repository
	Cart        cart.Service
	Coupons     coupons.Service
	Orders      orders.Service
	Refunds     refunds.Service
	Initiator   *payments.Initiator
	Outcomes    *payments.OutcomeHandler
	RetryPolicy *payments.RetryPolicy
	Verifiers   map[enums.PaymentProvider]payments.Verifier
	Outbox      *outbox.Repository

	StripeClient       *stripe.Client
	StripeWebhooks     *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

// New wires repositories, processors and services from configuration.
// The configured checkout provider must have credentials; the other
// processor is wired for refunds and reconciliation when it has them too.
func New(ctx context.Context, p Params) (*Services, error) {
	switch {
	case p.Config == nil:
		return nil, fmt.Errorf("config required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case p.DB == nil:
		return nil, fmt.Errorf("database client required")
	case p.Redis == nil:
		return nil, fmt.Errorf("redis client required")
	}
	cfg := p.Config
	conn := p.DB.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(p.Registry)

	currency, err := enums.ParseCurrency(cfg.Checkout.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("default currency: %w", err)
	}

	out := &Services{
		Attempts:  payments.NewRepository(conn),
		Verifiers: map[enums.PaymentProvider]payments.Verifier{},
		Outbox:    outbox.NewRepository(conn),
	}
	emitter := outbox.NewService(out.Outbox, p.Logger)

	if out.Coupons, err = coupons.NewService(coupons.NewRepository(conn)); err != nil {
		return nil, err
	}
	cartStorage := cart.NewRedisStorage(p.Redis, cfg.Checkout.CartTTL)
	cartLease, err := cart.NewRedisLease(p.Redis, cfg.Checkout.CartLeaseTTL, cfg.Checkout.CartLeaseWait)
	if err != nil {
		return nil, err
	}
	if out.Cart, err = cart.NewService(cartStorage, out.Coupons, currency, p.Logger, cart.WithSessionLease(cartLease)); err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(conn)
	out.Orders, err = orders.NewService(ordersRepo, p.DB, emitter, orders.Options{
		OrdersPath:        cfg.Checkout.OrdersPath,
		EstimatedPrepTime: cfg.Checkout.EstimatedPrepTime,
	})
	if err != nil {
		return nil, err
	}

	var (
		processor payments.Processor
		refunders []payments.Refunder
	)
	if cfg.Stripe.APIKey != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, p.Logger)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		proc, err := payments.NewStripeProcessor(client, checkoutMetrics)
		if err != nil {
			return nil, err
		}
		out.StripeClient = client
		out.Verifiers[enums.PaymentProviderStripe] = proc
		refunders = append(refunders, proc)
		if cfg.Checkout.NormalizedProvider() == config.ProviderStripe {
			processor = proc
		}
	}
	if cfg.Square.AccessToken != "" {
		client, err := square.NewClient(ctx, cfg.Square, p.Logger)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		proc, err := payments.NewSquareProcessor(client, checkoutMetrics)
		if err != nil {
			return nil, err
		}
		out.Verifiers[enums.PaymentProviderSquare] = proc
		refunders = append(refunders, proc)
		if cfg.Checkout.NormalizedProvider() == config.ProviderSquare {
			processor = proc
		}
	}
	if processor == nil {
		return nil, fmt.Errorf("no credentials configured for checkout provider %q", cfg.Checkout.Provider)
	}

	if out.RetryPolicy, err = payments.NewRetryPolicy(out.Attempts, cfg.Checkout.MaxAttempts, cfg.Checkout.SupportPath); err != nil {
		return nil, err
	}

	guard, err := idempotency.NewManager(p.Redis, cfg.Checkout.OutcomeGuardTTL)
	if err != nil {
		return nil, err
	}
	out.Outcomes, err = payments.NewOutcomeHandler(payments.OutcomeDeps{
		Attempts: out.Attempts,
		Orders:   ordersRepo,
		Tx:       p.DB,
		Outbox:   emitter,
		Coupons:  out.Coupons,
		Cart:     out.Cart,
		Guard:    guard,
		Verifier: out.Verifiers[processor.Provider()],
		Policy:   out.RetryPolicy,
		Metrics:  checkoutMetrics,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, err
	}

	out.Initiator, err = payments.NewInitiator(payments.InitiatorDeps{
		Attempts:   out.Attempts,
		Tx:         p.DB,
		Cart:       out.Cart,
		Processor:  processor,
		Policy:     out.RetryPolicy,
		Outcomes:   out.Outcomes,
		SuccessURL: cfg.Checkout.SuccessURL,
		FailureURL: cfg.Checkout.FailureURL,
		Metrics:    checkoutMetrics,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, err
	}

	out.Refunds, err = refunds.NewService(refunds.ServiceParams{
		Repo:    refunds.NewRepository(conn),
		Orders:  ordersRepo,
		Tx:      p.DB,
		Outbox:  emitter,
		Issuer:  payments.NewRefundRouter(refunders...),
		Metrics: checkoutMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, err
	}

	if out.StripeClient != nil {
		out.StripeWebhooks, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Attempts: out.Attempts,
			Outcomes: out.Outcomes,
			Logger:   p.Logger,
		})
		if err != nil {
			return nil, err
		}
		out.StripeWebhookGuard, err = stripewebhook.NewIdempotencyGuard(p.Redis, cfg.Checkout.IdempotencyTTL, stripewebhook.EventScope)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

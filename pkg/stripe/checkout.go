package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/refund"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

const tracerName = "github.com/angelmondragon/ordering-backend/pkg/stripe"

// Metadata keys written on every checkout session.
const (
	MetadataPaymentID  = "payment_id"
	MetadataOrderRef   = "order_id"
	MetadataPurchaseID = "purchase_id"
)

// CheckoutSessionInput describes a single hosted checkout for one payment attempt.
type CheckoutSessionInput struct {
	PaymentID      string
	OrderRef       string
	PurchaseID     string
	AmountCents    int64
	Currency       string
	Description    string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutAPI is the subset of Stripe calls the payment flow depends on.
type CheckoutAPI interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64, idempotencyKey string) (*stripe.Refund, error)
}

// CreateCheckoutSession opens a payment-mode session charging the attempt total as one line.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	params, err := buildSessionParams(in)
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	var out *stripe.CheckoutSession
	err = traced(ctx, "stripe.checkout_session.create", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("payment.id", in.PaymentID),
			attribute.Int64("payment.amount_cents", in.AmountCents),
		)
		params.Context = ctx
		sess, err := session.New(params)
		if err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, mapStripeError(err, "create checkout session")
	}
	return out, nil
}

// GetCheckoutSession fetches a session with its payment intent expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("payment_intent")

	var out *stripe.CheckoutSession
	err := traced(ctx, "stripe.checkout_session.get", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("stripe.session_id", id))
		params.Context = ctx
		sess, err := session.Get(id, params)
		if err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, mapStripeError(err, "get checkout session")
	}
	return out, nil
}

// CreateRefund refunds part or all of a payment intent.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64, idempotencyKey string) (*stripe.Refund, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	var out *stripe.Refund
	err := traced(ctx, "stripe.refund.create", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int64("refund.amount_cents", amountCents))
		params.Context = ctx
		r, err := refund.New(params)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, mapStripeError(err, "create refund")
	}
	return out, nil
}

func buildSessionParams(in CheckoutSessionInput) (*stripe.CheckoutSessionParams, error) {
	switch {
	case in.PaymentID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	case in.AmountCents <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	case in.SuccessURL == "" || in.CancelURL == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls are required")
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("Order %s", in.OrderRef)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.PaymentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(in.Currency)),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				MetadataPaymentID: in.PaymentID,
				MetadataOrderRef:  in.OrderRef,
			},
		},
	}
	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata(MetadataPaymentID, in.PaymentID)
	params.AddMetadata(MetadataOrderRef, in.OrderRef)
	if in.PurchaseID != "" {
		params.AddMetadata(MetadataPurchaseID, in.PurchaseID)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return params, nil
}

func traced(ctx context.Context, name string, fn func(context.Context, trace.Span) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	started := time.Now()
	err := fn(ctx, span)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// mapStripeError keeps Stripe's HTTP status so callers can pass it through.
func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeDependency
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			code = pkgerrors.CodeDeclined
		case stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse:
			code = pkgerrors.CodeIdempotency
		case stripeErr.HTTPStatusCode == 400 || stripeErr.HTTPStatusCode == 404:
			code = pkgerrors.CodeValidation
		case stripeErr.HTTPStatusCode == 429:
			code = pkgerrors.CodeRateLimit
		}
		wrapped := pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
		if stripeErr.HTTPStatusCode >= 400 {
			wrapped = wrapped.WithStatus(stripeErr.HTTPStatusCode)
		}
		return wrapped
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

// DeclineCode extracts the processor decline code of a failed session payment, if any.
func DeclineCode(sess *stripe.CheckoutSession) string {
	if sess == nil || sess.PaymentIntent == nil || sess.PaymentIntent.LastPaymentError == nil {
		return ""
	}
	last := sess.PaymentIntent.LastPaymentError
	if last.DeclineCode != "" {
		return string(last.DeclineCode)
	}
	return string(last.Code)
}

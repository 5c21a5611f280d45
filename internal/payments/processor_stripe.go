package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
	"github.com/angelmondragon/ordering-backend/pkg/stripe"
)

// StripeProcessor runs attempts through hosted Checkout Sessions.
type StripeProcessor struct {
	api     stripe.CheckoutAPI
	metrics *metrics.CheckoutMetrics
}

// NewStripeProcessor wraps the Stripe checkout API.
func NewStripeProcessor(api stripe.CheckoutAPI, m *metrics.CheckoutMetrics) (*StripeProcessor, error) {
	if api == nil {
		return nil, errors.New("stripe checkout api required")
	}
	return &StripeProcessor{api: api, metrics: m}, nil
}

func (p *StripeProcessor) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (p *StripeProcessor) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	a := req.Attempt
	started := time.Now()
	sess, err := p.api.CreateCheckoutSession(ctx, stripe.CheckoutSessionInput{
		PaymentID:      a.ID.String(),
		OrderRef:       a.OrderRef.String(),
		PurchaseID:     a.PurchaseID.String(),
		AmountCents:    a.TotalCents,
		Currency:       a.Currency.Lower(),
		CustomerEmail:  a.Customer.Data.Email,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: req.IdempotencyKey,
	})
	p.metrics.ObserveProcessor(string(enums.PaymentProviderStripe), "initiate", time.Since(started))
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe returned a session without a redirect url")
	}
	return &ChargeResult{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}

// Verify reads the checkout session behind the attempt.
func (p *StripeProcessor) Verify(ctx context.Context, attempt *models.PaymentAttempt) (*Verification, error) {
	if attempt.ProviderSessionID == nil || *attempt.ProviderSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt has no stripe session")
	}
	started := time.Now()
	sess, err := p.api.GetCheckoutSession(ctx, *attempt.ProviderSessionID)
	p.metrics.ObserveProcessor(string(enums.PaymentProviderStripe), "verify", time.Since(started))
	if err != nil {
		return nil, err
	}
	return VerificationFromSession(sess), nil
}

// VerificationFromSession interprets a checkout session. Webhooks use it with
// the session embedded in the event.
func VerificationFromSession(sess *stripego.CheckoutSession) *Verification {
	if sess == nil {
		return &Verification{Status: VerificationPending}
	}
	ref := ""
	if sess.PaymentIntent != nil {
		ref = sess.PaymentIntent.ID
	}
	switch {
	case sess.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
		sess.PaymentStatus == stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
		return &Verification{Status: VerificationPaid, PaymentRef: ref}
	case sess.Status == stripego.CheckoutSessionStatusExpired:
		return &Verification{Status: VerificationFailed, PaymentRef: ref, Reason: enums.DeclineUserCancelled, Code: "session_expired"}
	}
	if code := stripe.DeclineCode(sess); code != "" {
		return &Verification{Status: VerificationFailed, PaymentRef: ref, Reason: ReasonFromCode(code), Code: code}
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.Status == stripego.PaymentIntentStatusCanceled {
		return &Verification{Status: VerificationFailed, PaymentRef: ref, Reason: enums.DeclineUserCancelled, Code: "payment_intent_cancelled"}
	}
	return &Verification{Status: VerificationPending, PaymentRef: ref}
}

func (p *StripeProcessor) Refund(ctx context.Context, paymentRef string, amountCents int64, _ enums.Currency, idempotencyKey string) (string, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order has no stripe payment to refund")
	}
	started := time.Now()
	r, err := p.api.CreateRefund(ctx, paymentRef, amountCents, idempotencyKey)
	p.metrics.ObserveProcessor(string(enums.PaymentProviderStripe), "refund", time.Since(started))
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("stripe refund returned no object")
	}
	return r.ID, nil
}

package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
	"github.com/angelmondragon/ordering-backend/pkg/square"
)

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (string, error)
}

// SquareProcessor charges a card token synchronously.
type SquareProcessor struct {
	client  squarePayments
	metrics *metrics.CheckoutMetrics
}

// NewSquareProcessor wraps the Square payments client.
func NewSquareProcessor(client squarePayments, m *metrics.CheckoutMetrics) (*SquareProcessor, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	return &SquareProcessor{client: client, metrics: m}, nil
}

func (p *SquareProcessor) Provider() enums.PaymentProvider {
	return enums.PaymentProviderSquare
}

// Initiate charges the card. Declines are an accepted attempt with an
// immediate failure; every other error leaves no attempt behind.
func (p *SquareProcessor) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId is required for card payments")
	}
	a := req.Attempt
	started := time.Now()
	payment, err := p.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    a.TotalCents,
		Currency:       string(a.Currency),
		SourceID:       req.SourceID,
		BuyerEmail:     a.Customer.Data.Email,
		IdempotencyKey: req.IdempotencyKey,
		Note:           "Order " + a.OrderRef.String(),
		ReferenceID:    a.ID.String(),
	})
	p.metrics.ObserveProcessor(string(enums.PaymentProviderSquare), "initiate", time.Since(started))
	if err != nil {
		if code, ok := square.DeclineCode(err); ok {
			reason := ReasonFromCode(code)
			return &ChargeResult{
				RedirectURL: redirectURL(req.CancelURL, a.ID, a.OrderRef, map[string]string{"reason": string(reason), "code": code}),
				Immediate:   &ImmediateOutcome{Reason: reason, Code: code, Message: reason.FriendlyMessage()},
			}, nil
		}
		return nil, err
	}

	ref := squareString(payment.GetID())
	result := &ChargeResult{PaymentRef: ref, SessionID: ref}
	switch squareString(payment.GetStatus()) {
	case "COMPLETED", "APPROVED":
		result.RedirectURL = req.SuccessURL
		result.Immediate = &ImmediateOutcome{Succeeded: true}
	case "FAILED", "CANCELED":
		reason := enums.DeclineCardDeclined
		result.RedirectURL = redirectURL(req.CancelURL, a.ID, a.OrderRef, map[string]string{"reason": string(reason)})
		result.Immediate = &ImmediateOutcome{Reason: reason, Message: reason.FriendlyMessage()}
	default:
		// left pending for reconciliation
		result.RedirectURL = req.SuccessURL
	}
	return result, nil
}

// Verify re-reads the Square payment, used by reconciliation.
func (p *SquareProcessor) Verify(ctx context.Context, attempt *models.PaymentAttempt) (*Verification, error) {
	if attempt.ProviderPaymentRef == nil || *attempt.ProviderPaymentRef == "" {
		return &Verification{Status: VerificationPending}, nil
	}
	started := time.Now()
	payment, err := p.client.GetPayment(ctx, *attempt.ProviderPaymentRef)
	p.metrics.ObserveProcessor(string(enums.PaymentProviderSquare), "verify", time.Since(started))
	if err != nil {
		return nil, err
	}
	ref := squareString(payment.GetID())
	switch squareString(payment.GetStatus()) {
	case "COMPLETED", "APPROVED":
		return &Verification{Status: VerificationPaid, PaymentRef: ref}, nil
	case "FAILED":
		return &Verification{Status: VerificationFailed, PaymentRef: ref, Reason: enums.DeclineCardDeclined}, nil
	case "CANCELED":
		return &Verification{Status: VerificationFailed, PaymentRef: ref, Reason: enums.DeclineUserCancelled}, nil
	default:
		return &Verification{Status: VerificationPending, PaymentRef: ref}, nil
	}
}

func (p *SquareProcessor) Refund(ctx context.Context, paymentRef string, amountCents int64, currency enums.Currency, idempotencyKey string) (string, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order has no square payment to refund")
	}
	started := time.Now()
	id, err := p.client.RefundPayment(ctx, square.RefundParams{
		PaymentID:      paymentRef,
		AmountCents:    amountCents,
		Currency:       string(currency),
		Reason:         "Restaurant refund",
		IdempotencyKey: idempotencyKey,
	})
	p.metrics.ObserveProcessor(string(enums.PaymentProviderSquare), "refund", time.Since(started))
	return id, err
}

func squareString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

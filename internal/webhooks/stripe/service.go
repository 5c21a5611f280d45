package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

type attemptLookup interface {
	FindByProviderSession(ctx context.Context, sessionID string) (*models.PaymentAttempt, error)
}

type outcomeRecorder interface {
	HandleSuccess(ctx context.Context, in payments.SuccessInput) (*payments.OutcomeResult, error)
	HandleFailure(ctx context.Context, in payments.FailureInput) (*payments.OutcomeResult, error)
}

type ServiceParams struct {
	Attempts attemptLookup
	Outcomes outcomeRecorder
	Logger   *logger.Logger
}

// Service turns Checkout Session events into payment outcomes.
type Service struct {
	attempts attemptLookup
	outcomes outcomeRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Attempts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment attempts repo required")
	}
	if params.Outcomes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outcome handler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		attempts: params.Attempts,
		outcomes: params.Outcomes,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.syncSession(ctx, event.Type, &sess)
	default:
		return nil
	}
}

func (s *Service) syncSession(ctx context.Context, eventType stripe.EventType, sess *stripe.CheckoutSession) error {
	paymentID, err := s.resolvePaymentID(ctx, sess)
	if err != nil {
		return err
	}
	if paymentID == uuid.Nil {
		s.logg.Warn(s.logg.WithField(ctx, "stripe_session", sess.ID), "checkout session does not belong to a payment attempt")
		return nil
	}

	v := payments.VerificationFromSession(sess)
	if eventType == stripe.EventTypeCheckoutSessionAsyncPaymentFailed && v.Status != payments.VerificationFailed {
		v = &payments.Verification{Status: payments.VerificationFailed, PaymentRef: v.PaymentRef, Code: "async_payment_failed"}
	}

	switch v.Status {
	case payments.VerificationPaid:
		_, err = s.outcomes.HandleSuccess(ctx, payments.SuccessInput{
			PaymentID:  paymentID,
			Source:     payments.SourceWebhook,
			Verified:   true,
			PaymentRef: v.PaymentRef,
		})
	case payments.VerificationFailed:
		code := v.Code
		if code == "" {
			code = string(v.Reason)
		}
		_, err = s.outcomes.HandleFailure(ctx, payments.FailureInput{
			PaymentID:  paymentID,
			Code:       code,
			Source:     payments.SourceWebhook,
			PaymentRef: v.PaymentRef,
		})
	default:
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil
	}
	return err
}

// resolvePaymentID prefers the client reference written at session creation.
func (s *Service) resolvePaymentID(ctx context.Context, sess *stripe.CheckoutSession) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(sess.ClientReferenceID)); err == nil {
		return id, nil
	}
	if sess.ID == "" {
		return uuid.Nil, nil
	}
	attempt, err := s.attempts.FindByProviderSession(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, nil
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment attempt")
	}
	return attempt.ID, nil
}

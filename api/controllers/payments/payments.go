package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/api/middleware"
	"github.com/angelmondragon/ordering-backend/api/responses"
	"github.com/angelmondragon/ordering-backend/api/validators"
	"github.com/angelmondragon/ordering-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

type initiator interface {
	Initiate(ctx context.Context, sessionHash string, in payments.InitiateInput) (*payments.InitiateResult, error)
}

type outcomeHandler interface {
	HandleSuccess(ctx context.Context, in payments.SuccessInput) (*payments.OutcomeResult, error)
	HandleFailure(ctx context.Context, in payments.FailureInput) (*payments.OutcomeResult, error)
}

type retryChecker interface {
	Status(ctx context.Context, paymentID uuid.UUID) (*payments.RetryStatus, error)
}

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// OutcomeRequest carries the parameters the processor appended to the
// browser redirect.
type OutcomeRequest struct {
	Status    string `json:"status" validate:"required,oneof=success failure"`
	PaymentID string `json:"paymentId" validate:"required,uuid"`
	OrderID   string `json:"orderId" validate:"omitempty,uuid"`
	Reason    string `json:"reason" validate:"omitempty,max=64"`
	Message   string `json:"message" validate:"omitempty,max=500"`
}

// Initiate submits the session cart to the configured processor.
func Initiate(svc initiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment initiator unavailable"))
			return
		}
		session := middleware.CartSessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required"))
			return
		}

		var payload payments.InitiateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), session, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Outcome records the browser-reported result of a payment. Replays return
// the stored result.
func Outcome(svc outcomeHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outcome handler unavailable"))
			return
		}

		var payload OutcomeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID := uuid.MustParse(payload.PaymentID)

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPayment(ctx, paymentID.String(), "")
		}

		var (
			result *payments.OutcomeResult
			err    error
		)
		switch payload.Status {
		case outcomeSuccess:
			if payload.OrderID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required on success"))
				return
			}
			result, err = svc.HandleSuccess(ctx, payments.SuccessInput{
				PaymentID: paymentID,
				OrderID:   uuid.MustParse(payload.OrderID),
				Source:    payments.SourceBrowser,
			})
		case outcomeFailure:
			if payload.Reason == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reason is required on failure"))
				return
			}
			result, err = svc.HandleFailure(ctx, payments.FailureInput{
				PaymentID: paymentID,
				Code:      payload.Reason,
				Message:   payload.Message,
				Source:    payments.SourceBrowser,
			})
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RetryStatus reports the remaining retry budget of the purchase that owns the payment.
func RetryStatus(svc retryChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry policy unavailable"))
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Status(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

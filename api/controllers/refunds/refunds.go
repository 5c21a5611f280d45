package refunds

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/api/middleware"
	"github.com/angelmondragon/ordering-backend/api/responses"
	"github.com/angelmondragon/ordering-backend/api/validators"
	internalrefunds "github.com/angelmondragon/ordering-backend/internal/refunds"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/pagination"
)

// CreateRequest opens a refund request against an order.
type CreateRequest struct {
	OrderID     string   `json:"orderId" validate:"required,uuid"`
	AmountCents int64    `json:"amountCents" validate:"required,min=1"`
	Reason      string   `json:"reason" validate:"required"`
	Evidence    []string `json:"evidence" validate:"omitempty,max=10,dive,max=2048"`
	Partial     *bool    `json:"partial"`
	Note        string   `json:"note" validate:"omitempty,max=2000"`
}

// DecisionRequest carries the version the admin saw when deciding.
type DecisionRequest struct {
	ExpectedVersion int    `json:"expectedVersion" validate:"min=1"`
	Note            string `json:"note" validate:"omitempty,max=2000"`
}

// Create opens a refund request in the requested state.
func Create(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, err := staffActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload CreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseRefundReason(strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund reason"))
			return
		}

		view, err := svc.Create(r.Context(), internalrefunds.CreateInput{
			OrderID:     uuid.MustParse(payload.OrderID),
			AmountCents: payload.AmountCents,
			Reason:      reason,
			Evidence:    payload.Evidence,
			Partial:     payload.Partial,
			Note:        payload.Note,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// List pages refund requests, newest first, optionally filtered by order or status.
func List(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := internalrefunds.ListFilter{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if filter.OrderID, err = validators.ParseQueryUUID(r, "orderId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Status, err = validators.ParseQueryEnum(r, "status", enums.RefundRequestStatus.IsValid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Get returns one refund request with its timeline.
func Get(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Approve moves a requested refund to approved.
func Approve(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, logg, func(r *http.Request, in internalrefunds.DecisionInput) (*internalrefunds.RefundView, error) {
		return svc.Approve(r.Context(), in)
	})
}

// Reject closes a requested refund without paying it.
func Reject(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, logg, func(r *http.Request, in internalrefunds.DecisionInput) (*internalrefunds.RefundView, error) {
		return svc.Reject(r.Context(), in)
	})
}

// Process issues an approved refund with the processor and records it on the order.
func Process(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return decide(svc, logg, func(r *http.Request, in internalrefunds.DecisionInput) (*internalrefunds.RefundView, error) {
		return svc.MarkProcessed(r.Context(), in)
	})
}

func decide(svc internalrefunds.Service, logg *logger.Logger, apply func(*http.Request, internalrefunds.DecisionInput) (*internalrefunds.RefundView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := staffActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload DecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := apply(r, internalrefunds.DecisionInput{
			RefundID:        id,
			ExpectedVersion: payload.ExpectedVersion,
			Note:            payload.Note,
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func staffActor(r *http.Request) (internalrefunds.Actor, error) {
	id, err := uuid.Parse(middleware.StaffIDFromContext(r.Context()))
	if err != nil {
		return internalrefunds.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity missing")
	}
	return internalrefunds.Actor{ID: id, Role: middleware.RoleFromContext(r.Context())}, nil
}

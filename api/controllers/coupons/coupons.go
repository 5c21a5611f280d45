package coupons

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ordering-backend/api/middleware"
	"github.com/angelmondragon/ordering-backend/api/responses"
	"github.com/angelmondragon/ordering-backend/api/validators"
	"github.com/angelmondragon/ordering-backend/internal/cart"
	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

type previewer interface {
	Apply(ctx context.Context, code string, totalCents int64, customerKey string) (coupons.Result, error)
}

type cartReader interface {
	Get(ctx context.Context, sessionHash string) (*cart.Cart, error)
}

// PreviewRequest asks what a coupon would do to the current cart.
type PreviewRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email,max=254"`
}

// PreviewResponse adds display fields to the coupon result.
type PreviewResponse struct {
	coupons.Result
	Message       string `json:"message,omitempty"`
	SubtotalCents int64  `json:"subtotalCents"`
	TotalCents    int64  `json:"totalCents"`
	Discount      string `json:"discount"`
	Total         string `json:"total"`
}

// Preview evaluates a coupon against the session cart without storing it.
func Preview(svc previewer, carts cartReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		session := middleware.CartSessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required"))
			return
		}

		var payload PreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := carts.Get(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subtotal := c.SubtotalCents()

		result, err := svc.Apply(r.Context(), payload.Code, subtotal, payload.CustomerEmail)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := PreviewResponse{
			Result:        result,
			SubtotalCents: subtotal,
			TotalCents:    subtotal - result.DiscountCents,
			Discount:      orders.FormatAmount(result.DiscountCents),
			Total:         orders.FormatAmount(subtotal - result.DiscountCents),
		}
		if !result.Accepted {
			resp.Message = coupons.Message(result.Reason)
		}
		responses.WriteSuccess(w, resp)
	}
}

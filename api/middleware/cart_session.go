package middleware

import (
	"net/http"

	"github.com/angelmondragon/ordering-backend/api/responses"
	"github.com/angelmondragon/ordering-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

// CartSession resolves the X-Cart-Session header into its hashed identity.
// Requests without a usable token are rejected.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash, ok := cart.HashSession(r.Header.Get(cart.SessionHeader))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required"))
				return
			}

			ctx := WithCartSession(r.Context(), hash)
			if logg != nil {
				ctx = logg.WithField(ctx, "cart_session", hash[:12])
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

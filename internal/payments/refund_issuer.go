package payments

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

// RefundRouter sends a refund to the processor that captured the order.
type RefundRouter struct {
	refunders map[enums.PaymentProvider]Refunder
}

// NewRefundRouter indexes refunders by provider. Nil entries are skipped.
func NewRefundRouter(refunders ...Refunder) *RefundRouter {
	r := &RefundRouter{refunders: make(map[enums.PaymentProvider]Refunder, len(refunders))}
	for _, refunder := range refunders {
		if refunder == nil {
			continue
		}
		r.refunders[refunder.Provider()] = refunder
	}
	return r
}

// IssueRefund returns the processor refund id.
func (r *RefundRouter) IssueRefund(ctx context.Context, order models.Order, amountCents int64, idempotencyKey string) (string, error) {
	refunder, ok := r.refunders[order.Provider]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no refunder configured for %s", order.Provider))
	}
	if order.ProviderPaymentRef == nil || *order.ProviderPaymentRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment to refund")
	}
	id, err := refunder.Refund(ctx, *order.ProviderPaymentRef, amountCents, order.Currency, idempotencyKey)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue processor refund")
	}
	return id, nil
}

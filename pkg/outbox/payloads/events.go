package payloads

import (
	"time"

	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once per purchase when the first payment succeeds.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID             `json:"orderId"`
	OrderNumber      string                `json:"orderNumber"`
	PurchaseID       uuid.UUID             `json:"purchaseId"`
	PaymentAttemptID uuid.UUID             `json:"paymentAttemptId"`
	TotalCents       int64                 `json:"totalCents"`
	DiscountCents    int64                 `json:"discountCents"`
	Currency         enums.Currency        `json:"currency"`
	CouponCode       *string               `json:"couponCode,omitempty"`
	Provider         enums.PaymentProvider `json:"provider"`
	ItemCount        int                   `json:"itemCount"`
	CustomerEmail    string                `json:"customerEmail"`
}

// OrderStatusChangedEvent reports a fulfilment transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changedAt"`
}

// PaymentFailedEvent records a terminal non-success outcome for one attempt.
type PaymentFailedEvent struct {
	PaymentAttemptID uuid.UUID            `json:"paymentAttemptId"`
	PurchaseID       uuid.UUID            `json:"purchaseId"`
	Sequence         int                  `json:"sequence"`
	Outcome          enums.PaymentOutcome `json:"outcome"`
	Reason           enums.DeclineReason  `json:"reason"`
	AttemptsUsed     int                  `json:"attemptsUsed"`
	RemainingRetries int                  `json:"remainingRetries"`
}

// PaymentSucceededAfterCompletionEvent flags a second successful charge on a purchase
// that already has an order. Operators refund it manually.
type PaymentSucceededAfterCompletionEvent struct {
	PaymentAttemptID   uuid.UUID             `json:"paymentAttemptId"`
	PurchaseID         uuid.UUID             `json:"purchaseId"`
	ExistingOrderID    uuid.UUID             `json:"existingOrderId"`
	AmountCents        int64                 `json:"amountCents"`
	Currency           enums.Currency        `json:"currency"`
	Provider           enums.PaymentProvider `json:"provider"`
	ProviderPaymentRef *string               `json:"providerPaymentRef,omitempty"`
}

// RefundStatusChangedEvent is emitted on every refund request transition, creation included.
type RefundStatusChangedEvent struct {
	RefundID      uuid.UUID                 `json:"refundId"`
	OrderID       uuid.UUID                 `json:"orderId"`
	Status        enums.RefundRequestStatus `json:"status"`
	AmountCents   int64                     `json:"amountCents"`
	Currency      enums.Currency            `json:"currency"`
	Partial       bool                      `json:"partial"`
	OrderRefund   enums.RefundStatus        `json:"orderRefundStatus"`
	RefundedCents int64                     `json:"refundedCents"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// PaymentAttempt is one submission to the payment processor. Its ID is the
// paymentId exchanged with the browser and the processor.
type PaymentAttempt struct {
	ID                 uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID         uuid.UUID                     `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:ux_payment_attempts_purchase_sequence,priority:1"`
	Sequence           int                           `gorm:"column:sequence;not null;uniqueIndex:ux_payment_attempts_purchase_sequence,priority:2"`
	OrderRef           uuid.UUID                     `gorm:"column:order_ref;type:uuid;not null"`
	Provider           enums.PaymentProvider         `gorm:"column:provider;not null"`
	ProviderSessionID  *string                       `gorm:"column:provider_session_id;index"`
	ProviderPaymentRef *string                       `gorm:"column:provider_payment_ref"`
	Outcome            enums.PaymentOutcome          `gorm:"column:outcome;not null;default:'pending'"`
	DeclineReason      *enums.DeclineReason          `gorm:"column:decline_reason"`
	DeclineCode        *string                       `gorm:"column:decline_code"`
	DeclineMessage     *string                       `gorm:"column:decline_message"`
	CartSessionHash    string                        `gorm:"column:cart_session_hash;not null;index"`
	CartSnapshot       dbtypes.JSON[[]OrderItem]     `gorm:"column:cart_snapshot;not null"`
	Customer           dbtypes.JSON[CustomerInfo]    `gorm:"column:customer;not null"`
	DeliveryAddress    dbtypes.JSON[DeliveryAddress] `gorm:"column:delivery_address;not null"`
	SubtotalCents      int64                         `gorm:"column:subtotal_cents;not null"`
	DiscountCents      int64                         `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int64                         `gorm:"column:total_cents;not null"`
	Currency           enums.Currency                `gorm:"column:currency;not null"`
	CouponCode         *string                       `gorm:"column:coupon_code"`
	RedirectURL        string                        `gorm:"column:redirect_url;not null"`
	ResolvedAt         *time.Time                    `gorm:"column:resolved_at"`
	SupersededAt       *time.Time                    `gorm:"column:superseded_at"`
	CreatedAt          time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// Order exists only once a payment attempt succeeded. Items are immutable.
type Order struct {
	ID                  uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber         string                        `gorm:"column:order_number;not null;uniqueIndex"`
	PurchaseID          uuid.UUID                     `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex"`
	PaymentAttemptID    uuid.UUID                     `gorm:"column:payment_attempt_id;type:uuid;not null;uniqueIndex"`
	CartSessionHash     string                        `gorm:"column:cart_session_hash;not null;index"`
	Items               dbtypes.JSON[[]OrderItem]     `gorm:"column:items;not null"`
	DeliveryAddress     dbtypes.JSON[DeliveryAddress] `gorm:"column:delivery_address;not null"`
	Customer            dbtypes.JSON[CustomerInfo]    `gorm:"column:customer;not null"`
	SubtotalCents       int64                         `gorm:"column:subtotal_cents;not null"`
	DiscountCents       int64                         `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int64                         `gorm:"column:total_cents;not null"`
	Currency            enums.Currency                `gorm:"column:currency;not null"`
	CouponCode          *string                       `gorm:"column:coupon_code"`
	Status              enums.OrderStatus             `gorm:"column:status;not null;default:'pending'"`
	RefundStatus        enums.RefundStatus            `gorm:"column:refund_status;not null;default:'none'"`
	RefundedCents       int64                         `gorm:"column:refunded_cents;not null;default:0"`
	Provider            enums.PaymentProvider         `gorm:"column:provider;not null"`
	ProviderPaymentRef  *string                       `gorm:"column:provider_payment_ref"`
	EstimatedDeliveryAt *time.Time                    `gorm:"column:estimated_delivery_at"`
	Version             int                           `gorm:"column:version;not null;default:1"`
	CreatedAt           time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// RefundableCents is what is left to refund on the order.
func (o Order) RefundableCents() int64 {
	remaining := o.TotalCents - o.RefundedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

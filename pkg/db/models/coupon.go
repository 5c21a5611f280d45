package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// Coupon defines a discount code and its eligibility rules.
type Coupon struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Code             string                   `gorm:"column:code;not null;uniqueIndex"`
	DiscountType     enums.CouponDiscountType `gorm:"column:discount_type;not null"`
	AmountCents      int64                    `gorm:"column:amount_cents;not null;default:0"`
	PercentOff       decimal.Decimal          `gorm:"column:percent_off;type:numeric(5,2);not null;default:0"`
	StartsAt         *time.Time               `gorm:"column:starts_at"`
	EndsAt           *time.Time               `gorm:"column:ends_at"`
	PerCustomerLimit int                      `gorm:"column:per_customer_limit;not null;default:0"`
	MinCartCents     int64                    `gorm:"column:min_cart_cents;not null;default:0"`
	MaxDiscountCents int64                    `gorm:"column:max_discount_cents;not null;default:0"`
	Active           bool                     `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CouponRedemption records a coupon consumed by a finalized order.
type CouponRedemption struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CouponID      uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	CustomerKey   string    `gorm:"column:customer_key;not null;index"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DiscountCents int64     `gorm:"column:discount_cents;not null"`
	RedeemedAt    time.Time `gorm:"column:redeemed_at;not null"`
}

func (r *CouponRedemption) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// OrderItemView is one charged line with display amounts.
type OrderItemView struct {
	DishID     string `json:"dishId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
	UnitPrice  string `json:"unitPrice"`
	LineTotal  string `json:"lineTotal"`
	TotalCents int64  `json:"lineTotalCents"`
}

// OrderView is what customers and admins see when tracking an order.
type OrderView struct {
	ID                  uuid.UUID              `json:"orderId"`
	OrderNumber         string                 `json:"orderNumber"`
	Status              enums.OrderStatus      `json:"status"`
	StatusLabel         string                 `json:"statusLabel"`
	Items               []OrderItemView        `json:"items"`
	DeliveryAddress     models.DeliveryAddress `json:"deliveryAddress"`
	Currency            enums.Currency         `json:"currency"`
	SubtotalCents       int64                  `json:"subtotalCents"`
	DiscountCents       int64                  `json:"discountCents"`
	TotalCents          int64                  `json:"totalCents"`
	Subtotal            string                 `json:"subtotal"`
	Discount            string                 `json:"discount"`
	Total               string                 `json:"total"`
	CouponCode          *string                `json:"couponCode,omitempty"`
	RefundStatus        enums.RefundStatus     `json:"refundStatus"`
	RefundedCents       int64                  `json:"refundedCents"`
	EstimatedDeliveryAt *time.Time             `json:"estimatedDeliveryAt,omitempty"`
	Version             int                    `json:"version"`
	CreatedAt           time.Time              `json:"createdAt"`
}

// OrderSummary backs the order list.
type OrderSummary struct {
	ID          uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	Status      enums.OrderStatus `json:"status"`
	StatusLabel string            `json:"statusLabel"`
	Total       string            `json:"total"`
	Currency    enums.Currency    `json:"currency"`
	ItemCount   int               `json:"itemCount"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// FormatAmount renders minor units as a two-decimal string, e.g. 2000 -> "20.00".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// NewOrderView maps the persisted order to its tracking view.
func NewOrderView(o models.Order) OrderView {
	items := make([]OrderItemView, 0, len(o.Items.Data))
	for _, it := range o.Items.Data {
		items = append(items, OrderItemView{
			DishID:     it.DishID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
			UnitPrice:  FormatAmount(it.UnitPriceCents),
			LineTotal:  FormatAmount(it.LineTotalCents),
			TotalCents: it.LineTotalCents,
		})
	}
	return OrderView{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              o.Status,
		StatusLabel:         o.Status.Label(),
		Items:               items,
		DeliveryAddress:     o.DeliveryAddress.Data,
		Currency:            o.Currency,
		SubtotalCents:       o.SubtotalCents,
		DiscountCents:       o.DiscountCents,
		TotalCents:          o.TotalCents,
		Subtotal:            FormatAmount(o.SubtotalCents),
		Discount:            FormatAmount(o.DiscountCents),
		Total:               FormatAmount(o.TotalCents),
		CouponCode:          o.CouponCode,
		RefundStatus:        o.RefundStatus,
		RefundedCents:       o.RefundedCents,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		Version:             o.Version,
		CreatedAt:           o.CreatedAt,
	}
}

// NewOrderSummary maps the persisted order to its list entry.
func NewOrderSummary(o models.Order) OrderSummary {
	count := 0
	for _, it := range o.Items.Data {
		count += it.Quantity
	}
	return OrderSummary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		StatusLabel: o.Status.Label(),
		Total:       FormatAmount(o.TotalCents),
		Currency:    o.Currency,
		ItemCount:   count,
		CreatedAt:   o.CreatedAt,
	}
}

package cart

import (
	"time"

	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/ordering-backend/internal/cart"
	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// LineView is one cart line as rendered to the storefront.
type LineView struct {
	LineID         string `json:"lineId"`
	DishID         string `json:"dishId"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	Notes          string `json:"notes,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	UnitPrice      string `json:"unitPrice"`
	LineTotalCents int64  `json:"lineTotalCents"`
	LineTotal      string `json:"lineTotal"`
}

// CouponView describes the coupon currently applied to the cart.
type CouponView struct {
	Code          string `json:"code"`
	DiscountCents int64  `json:"discountCents"`
	Discount      string `json:"discount"`
}

// View is the cart payload returned by every cart endpoint.
type View struct {
	Lines         []LineView        `json:"lines"`
	ItemCount     int               `json:"itemCount"`
	Currency      enums.Currency    `json:"currency"`
	SubtotalCents int64             `json:"subtotalCents"`
	DiscountCents int64             `json:"discountCents"`
	TotalCents    int64             `json:"totalCents"`
	Subtotal      string            `json:"subtotal"`
	Discount      string            `json:"discount"`
	Total         string            `json:"total"`
	Coupon        *CouponView       `json:"coupon,omitempty"`
	PurchaseID    *uuid.UUID        `json:"purchaseId,omitempty"`
	Version       int               `json:"version"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Warnings      []cartsvc.Warning `json:"warnings,omitempty"`
}

func newView(c *cartsvc.Cart) View {
	if c == nil {
		return View{Lines: []LineView{}}
	}
	lines := make([]LineView, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, LineView{
			LineID:         l.LineID,
			DishID:         l.DishID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			Notes:          l.Notes,
			UnitPriceCents: l.UnitPriceCents,
			UnitPrice:      orders.FormatAmount(l.UnitPriceCents),
			LineTotalCents: l.TotalCents(),
			LineTotal:      orders.FormatAmount(l.TotalCents()),
		})
	}
	view := View{
		Lines:         lines,
		ItemCount:     c.ItemCount(),
		Currency:      c.Currency,
		SubtotalCents: c.SubtotalCents(),
		DiscountCents: c.DiscountCents(),
		TotalCents:    c.TotalCents(),
		Subtotal:      orders.FormatAmount(c.SubtotalCents()),
		Discount:      orders.FormatAmount(c.DiscountCents()),
		Total:         orders.FormatAmount(c.TotalCents()),
		PurchaseID:    c.PurchaseID,
		Version:       c.Version,
		UpdatedAt:     c.UpdatedAt,
		Warnings:      c.Warnings,
	}
	if c.Coupon != nil {
		view.Coupon = &CouponView{
			Code:          c.Coupon.Code,
			DiscountCents: c.DiscountCents(),
			Discount:      orders.FormatAmount(c.DiscountCents()),
		}
	}
	return view
}

package cart

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// Line is one dish in the cart. Lines with the same dish and notes merge.
type Line struct {
	LineID         string `json:"lineId"`
	DishID         string `json:"dishId"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Notes          string `json:"notes,omitempty"`
}

// TotalCents is quantity times unit price.
func (l Line) TotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// AppliedCoupon is the coupon attached to the cart and the discount it grants
// at the current subtotal.
type AppliedCoupon struct {
	Code          string `json:"code"`
	DiscountCents int64  `json:"discountCents"`
	CustomerKey   string `json:"customerKey,omitempty"`
}

// Cart is the persisted snapshot for one browsing session.
type Cart struct {
	Lines      []Line         `json:"lines"`
	Currency   enums.Currency `json:"currency"`
	Coupon     *AppliedCoupon `json:"coupon,omitempty"`
	PurchaseID *uuid.UUID     `json:"purchaseId,omitempty"`
	Version    int            `json:"version"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	// Warnings describe changes made on the caller's behalf during the last
	// mutation. They are not persisted.
	Warnings []Warning `json:"-"`
}

// Warning is surfaced to the customer after a mutation.
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newCart(currency enums.Currency) *Cart {
	return &Cart{Lines: []Line{}, Currency: currency}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// SubtotalCents is the sum of line totals.
func (c *Cart) SubtotalCents() int64 {
	var sum int64
	for _, l := range c.Lines {
		sum += l.TotalCents()
	}
	return sum
}

// DiscountCents is the coupon discount clamped to [0, subtotal].
func (c *Cart) DiscountCents() int64 {
	if c.Coupon == nil {
		return 0
	}
	d := c.Coupon.DiscountCents
	if d < 0 {
		return 0
	}
	if sub := c.SubtotalCents(); d > sub {
		return sub
	}
	return d
}

// TotalCents is subtotal minus discount.
func (c *Cart) TotalCents() int64 {
	return c.SubtotalCents() - c.DiscountCents()
}

// CouponCode returns the attached code or empty.
func (c *Cart) CouponCode() string {
	if c.Coupon == nil {
		return ""
	}
	return c.Coupon.Code
}

// ItemCount is the number of dishes across lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// OrderItems converts the lines into the immutable snapshot stored on attempts and orders.
func (c *Cart) OrderItems() []models.OrderItem {
	items := make([]models.OrderItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, models.OrderItem{
			DishID:         l.DishID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			Notes:          l.Notes,
			LineTotalCents: l.TotalCents(),
		})
	}
	return items
}

func (c *Cart) clone() *Cart {
	out := *c
	out.Lines = append([]Line(nil), c.Lines...)
	if c.Coupon != nil {
		cp := *c.Coupon
		out.Coupon = &cp
	}
	if c.PurchaseID != nil {
		id := *c.PurchaseID
		out.PurchaseID = &id
	}
	out.Warnings = nil
	return &out
}

// lineID is the dish id suffixed with a short digest of the notes. Lines
// without notes carry a suffix too, so a line id never equals a dish id.
func lineID(dishID, notes string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(notes)))
	return dishID + "~" + hex.EncodeToString(sum[:4])
}

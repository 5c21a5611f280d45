package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

const (
	maxLineQuantity = 99
	maxLines        = 50

	WarningCouponRemoved = "coupon_removed"
)

type couponPreviewer interface {
	Apply(ctx context.Context, code string, totalCents int64, customerKey string) (coupons.Result, error)
}

// ItemInput is a dish to add. Prices come from the menu catalogue the caller trusts.
type ItemInput struct {
	DishID         string `json:"dishId" validate:"required,max=64"`
	Name           string `json:"name" validate:"required,max=200"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=99"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"min=0"`
	Notes          string `json:"notes" validate:"max=500"`
}

// Service is the session cart store.
type Service interface {
	Get(ctx context.Context, sessionHash string) (*Cart, error)
	AddItem(ctx context.Context, sessionHash string, item ItemInput) (*Cart, error)
	UpdateQuantity(ctx context.Context, sessionHash, lineOrDishID string, quantity int) (*Cart, error)
	Clear(ctx context.Context, sessionHash string) error
	Total(ctx context.Context, sessionHash string) (int64, error)
	ApplyCoupon(ctx context.Context, sessionHash, code, customerKey string) (*Cart, coupons.Result, error)
	RemoveCoupon(ctx context.Context, sessionHash string) (*Cart, error)
	AttachPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (*Cart, error)
	ClearForPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (bool, error)
}

type service struct {
	storage  Storage
	coupons  couponPreviewer
	currency enums.Currency
	locks    *sessionLocks
	lease    SessionLease
	logg     *logger.Logger
	now      func() time.Time
}

// Option configures optional cart behavior.
type Option func(*service)

// WithSessionLease adds a cross-replica lease around every cart write, on top
// of the in-process session mutex.
func WithSessionLease(lease SessionLease) Option {
	return func(s *service) { s.lease = lease }
}

// NewService builds the cart store. coupons may be nil when coupons are disabled.
func NewService(storage Storage, previewer couponPreviewer, currency enums.Currency, logg *logger.Logger, opts ...Option) (Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("cart storage required")
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid cart currency %q", currency)
	}
	s := &service{
		storage:  storage,
		coupons:  previewer,
		currency: currency,
		locks:    newSessionLocks(),
		logg:     logg,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// lockSession takes the local mutex first so only one goroutine per replica
// competes for the shared lease.
func (s *service) lockSession(ctx context.Context, sessionHash string) (func(), error) {
	unlock := s.locks.lock(sessionHash)
	if s.lease == nil {
		return unlock, nil
	}
	release, err := s.lease.Acquire(ctx, sessionHash)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (s *service) Get(ctx context.Context, sessionHash string) (*Cart, error) {
	if err := requireSession(sessionHash); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionHash)
}

func (s *service) Total(ctx context.Context, sessionHash string) (int64, error) {
	c, err := s.Get(ctx, sessionHash)
	if err != nil {
		return 0, err
	}
	return c.TotalCents(), nil
}

func (s *service) AddItem(ctx context.Context, sessionHash string, item ItemInput) (*Cart, error) {
	item.DishID = strings.TrimSpace(item.DishID)
	item.Name = strings.TrimSpace(item.Name)
	item.Notes = strings.TrimSpace(item.Notes)
	switch {
	case item.DishID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish id is required")
	case item.Name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish name is required")
	case item.Quantity < 1:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	case item.UnitPriceCents < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}

	return s.mutate(ctx, sessionHash, true, func(c *Cart) error {
		id := lineID(item.DishID, item.Notes)
		for i := range c.Lines {
			if c.Lines[i].LineID != id {
				continue
			}
			next := c.Lines[i].Quantity + item.Quantity
			if next > maxLineQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity cannot exceed %d", maxLineQuantity))
			}
			c.Lines[i].Quantity = next
			c.Lines[i].Name = item.Name
			c.Lines[i].UnitPriceCents = item.UnitPriceCents
			return nil
		}
		if item.Quantity > maxLineQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity cannot exceed %d", maxLineQuantity))
		}
		if len(c.Lines) >= maxLines {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is full")
		}
		c.Lines = append(c.Lines, Line{
			LineID:         id,
			DishID:         item.DishID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Notes:          item.Notes,
		})
		return nil
	})
}

// UpdateQuantity sets the quantity of a line; zero removes it. The key is a
// line id, or a dish id when exactly one line holds that dish.
func (s *service) UpdateQuantity(ctx context.Context, sessionHash, lineOrDishID string, quantity int) (*Cart, error) {
	key := strings.TrimSpace(lineOrDishID)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish id is required")
	}
	if quantity < 0 || quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 0 and %d", maxLineQuantity))
	}

	return s.mutate(ctx, sessionHash, true, func(c *Cart) error {
		idx, err := findLine(c.Lines, key)
		if err != nil {
			return err
		}
		if quantity == 0 {
			c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
			return nil
		}
		c.Lines[idx].Quantity = quantity
		return nil
	})
}

// Clear empties the cart on explicit user action.
func (s *service) Clear(ctx context.Context, sessionHash string) error {
	if err := requireSession(sessionHash); err != nil {
		return err
	}
	unlock, err := s.lockSession(ctx, sessionHash)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.storage.Clear(ctx, sessionHash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ApplyCoupon(ctx context.Context, sessionHash, code, customerKey string) (*Cart, coupons.Result, error) {
	if s.coupons == nil {
		return nil, coupons.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "coupons are not available")
	}
	var result coupons.Result
	c, err := s.mutate(ctx, sessionHash, false, func(c *Cart) error {
		if c.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		res, err := s.coupons.Apply(ctx, code, c.SubtotalCents(), customerKey)
		if err != nil {
			return err
		}
		result = res
		if !res.Accepted {
			return pkgerrors.New(pkgerrors.CodeValidation, coupons.Message(res.Reason)).
				WithDetails(map[string]any{"reason": res.Reason, "code": res.Code})
		}
		c.Coupon = &AppliedCoupon{
			Code:          res.Code,
			DiscountCents: res.DiscountCents,
			CustomerKey:   coupons.NormalizeCustomerKey(customerKey),
		}
		return nil
	})
	if err != nil {
		return nil, result, err
	}
	return c, result, nil
}

func (s *service) RemoveCoupon(ctx context.Context, sessionHash string) (*Cart, error) {
	return s.mutate(ctx, sessionHash, false, func(c *Cart) error {
		c.Coupon = nil
		return nil
	})
}

// AttachPurchase binds the cart to a logical purchase. An existing binding wins,
// so every attempt of one cart shares the purchase id.
func (s *service) AttachPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (*Cart, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	return s.mutate(ctx, sessionHash, false, func(c *Cart) error {
		if c.PurchaseID == nil {
			id := purchaseID
			c.PurchaseID = &id
		}
		return nil
	})
}

// ClearForPurchase clears the cart only while it still belongs to purchaseID.
// It reports whether a clear happened; calling it again is harmless.
func (s *service) ClearForPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (bool, error) {
	if err := requireSession(sessionHash); err != nil {
		return false, err
	}
	unlock, err := s.lockSession(ctx, sessionHash)
	if err != nil {
		return false, err
	}
	defer unlock()

	c, err := s.load(ctx, sessionHash)
	if err != nil {
		return false, err
	}
	if c.PurchaseID == nil || *c.PurchaseID != purchaseID {
		return false, nil
	}
	if err := s.storage.Clear(ctx, sessionHash); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart for purchase")
	}
	return true, nil
}

// mutate serializes a read-modify-write for one session, re-previews any
// attached coupon and persists the whole snapshot before returning.
func (s *service) mutate(ctx context.Context, sessionHash string, repreview bool, fn func(c *Cart) error) (*Cart, error) {
	if err := requireSession(sessionHash); err != nil {
		return nil, err
	}
	unlock, err := s.lockSession(ctx, sessionHash)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, sessionHash)
	if err != nil {
		return nil, err
	}
	next := current.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if repreview && next.Coupon != nil {
		next.Warnings = append(next.Warnings, s.repreviewCoupon(ctx, next)...)
	}

	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, sessionHash, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *service) repreviewCoupon(ctx context.Context, c *Cart) []Warning {
	if s.coupons == nil {
		c.Coupon = nil
		return nil
	}
	res, err := s.coupons.Apply(ctx, c.Coupon.Code, c.SubtotalCents(), c.Coupon.CustomerKey)
	if err != nil {
		// keep the last known discount; DiscountCents clamps it to the new subtotal
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "coupon_code", c.Coupon.Code), "coupon re-preview failed, keeping discount")
		}
		return nil
	}
	if !res.Accepted {
		code := c.Coupon.Code
		c.Coupon = nil
		return []Warning{{
			Type:    WarningCouponRemoved,
			Message: fmt.Sprintf("Coupon %s was removed: %s", code, coupons.Message(res.Reason)),
		}}
	}
	c.Coupon.DiscountCents = res.DiscountCents
	return nil
}

func (s *service) load(ctx context.Context, sessionHash string) (*Cart, error) {
	raw, ok, err := s.storage.Get(ctx, sessionHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !ok {
		return newCart(s.currency), nil
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	if c.Currency == "" {
		c.Currency = s.currency
	}
	return &c, nil
}

func (s *service) save(ctx context.Context, sessionHash string, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.storage.Set(ctx, sessionHash, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

// findLine resolves key as a line id, or as a dish id held by exactly one line.
func findLine(lines []Line, key string) (int, error) {
	exact, byDish, matches := -1, -1, 0
	for i, l := range lines {
		if l.LineID == key {
			exact = i
		}
		if l.DishID == key {
			byDish = i
			matches++
		}
	}
	switch {
	case matches > 1:
		return -1, pkgerrors.New(pkgerrors.CodeValidation, "dish appears on several lines; use the line id")
	case exact >= 0:
		return exact, nil
	case matches == 1:
		return byDish, nil
	default:
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "dish not in cart")
	}
}

func requireSession(sessionHash string) error {
	if strings.TrimSpace(sessionHash) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session is required")
	}
	return nil
}

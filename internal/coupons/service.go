package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

// Rejection reasons, in evaluation order.
const (
	ReasonNotFound          = "coupon_not_found"
	ReasonNotStarted        = "coupon_not_started"
	ReasonExpired           = "coupon_expired"
	ReasonUsageLimitReached = "coupon_usage_limit_reached"
	ReasonMinCartNotMet     = "coupon_min_cart_not_met"
	ReasonCodeRequired      = "coupon_code_required"
	ReasonInvalidDefinition = "coupon_invalid_definition"
)

var hundred = decimal.NewFromInt(100)

// ErrUsageLimitReached is returned by Redeem when the per-customer limit was
// consumed between preview and finalization.
var ErrUsageLimitReached = pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")

// Result is the outcome of a preview. DiscountCents is zero when rejected.
type Result struct {
	Code          string `json:"code"`
	Accepted      bool   `json:"accepted"`
	DiscountCents int64  `json:"discountCents"`
	Reason        string `json:"reason,omitempty"`
}

// Service validates coupons against a cart total and consumes them on order finalization.
type Service interface {
	Apply(ctx context.Context, code string, totalCents int64, customerKey string) (Result, error)
	Redeem(ctx context.Context, tx *gorm.DB, code, customerKey string, orderID uuid.UUID, discountCents int64) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the coupon validator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Apply previews code against totalCents. It never writes. The per-customer
// rule is skipped when customerKey is empty.
func (s *service) Apply(ctx context.Context, code string, totalCents int64, customerKey string) (Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return reject(normalized, ReasonCodeRequired), nil
	}
	if totalCents < 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "total must be non-negative")
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(normalized, ReasonNotFound), nil
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	reason, err := s.check(ctx, s.repo, coupon, totalCents, customerKey)
	if err != nil {
		return Result{}, err
	}
	if reason != "" {
		return reject(normalized, reason), nil
	}

	discount, err := computeDiscount(coupon, totalCents)
	if err != nil {
		return reject(normalized, ReasonInvalidDefinition), nil
	}
	return Result{Code: normalized, Accepted: true, DiscountCents: discount}, nil
}

// Redeem records the coupon against orderID inside the caller's transaction.
// The coupon row is locked and the per-customer limit checked again.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code, customerKey string, orderID uuid.UUID, discountCents int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "coupon redemption requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	coupon, err := repo.LockByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}

	key := NormalizeCustomerKey(customerKey)
	if coupon.PerCustomerLimit > 0 && key != "" {
		used, err := repo.CountRedemptions(ctx, coupon.ID, key)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon redemptions")
		}
		if used >= int64(coupon.PerCustomerLimit) {
			return ErrUsageLimitReached
		}
	}

	return repo.CreateRedemption(ctx, &models.CouponRedemption{
		CouponID:      coupon.ID,
		CustomerKey:   key,
		OrderID:       orderID,
		DiscountCents: discountCents,
		RedeemedAt:    s.now().UTC(),
	})
}

// check runs the rejecting rules in order and returns the first failure.
func (s *service) check(ctx context.Context, repo Repository, coupon *models.Coupon, totalCents int64, customerKey string) (string, error) {
	if !coupon.Active {
		return ReasonNotFound, nil
	}

	now := s.now()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return ReasonNotStarted, nil
	}
	if coupon.EndsAt != nil && !now.Before(*coupon.EndsAt) {
		return ReasonExpired, nil
	}

	if key := NormalizeCustomerKey(customerKey); key != "" && coupon.PerCustomerLimit > 0 {
		used, err := repo.CountRedemptions(ctx, coupon.ID, key)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon redemptions")
		}
		if used >= int64(coupon.PerCustomerLimit) {
			return ReasonUsageLimitReached, nil
		}
	}

	if totalCents < coupon.MinCartCents {
		return ReasonMinCartNotMet, nil
	}
	return "", nil
}

// computeDiscount applies the coupon's rate, then the max-discount cap, then
// clamps to the total. The cap never rejects.
func computeDiscount(coupon *models.Coupon, totalCents int64) (int64, error) {
	var discount int64
	switch coupon.DiscountType {
	case enums.CouponDiscountFixed:
		discount = coupon.AmountCents
	case enums.CouponDiscountPercentage:
		if coupon.PercentOff.IsNegative() || coupon.PercentOff.GreaterThan(hundred) {
			return 0, fmt.Errorf("percent off out of range: %s", coupon.PercentOff)
		}
		discount = decimal.NewFromInt(totalCents).
			Mul(coupon.PercentOff).
			Div(hundred).
			Round(0).
			IntPart()
	default:
		return 0, fmt.Errorf("unknown discount type %q", coupon.DiscountType)
	}

	if coupon.MaxDiscountCents > 0 && discount > coupon.MaxDiscountCents {
		discount = coupon.MaxDiscountCents
	}
	if discount > totalCents {
		discount = totalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

func reject(code, reason string) Result {
	return Result{Code: code, Accepted: false, Reason: reason}
}

// Message returns a customer-facing sentence for a rejection reason.
func Message(reason string) string {
	switch reason {
	case ReasonNotFound:
		return "This coupon code does not exist."
	case ReasonNotStarted:
		return "This coupon is not active yet."
	case ReasonExpired:
		return "This coupon has expired."
	case ReasonUsageLimitReached:
		return "You have already used this coupon."
	case ReasonMinCartNotMet:
		return "Your cart does not reach the minimum amount for this coupon."
	case ReasonCodeRequired:
		return "Enter a coupon code."
	default:
		return strings.ReplaceAll(reason, "_", " ")
	}
}

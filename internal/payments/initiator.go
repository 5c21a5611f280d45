package payments

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/internal/cart"
	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
)

type cartReader interface {
	Get(ctx context.Context, sessionHash string) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, sessionHash, code, customerKey string) (*cart.Cart, coupons.Result, error)
	AttachPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (*cart.Cart, error)
}

// CustomerInput identifies the payer.
type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// AddressInput is the delivery address.
type AddressInput struct {
	Line1        string `json:"line1" validate:"required,max=200"`
	Line2        string `json:"line2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	PostalCode   string `json:"postalCode" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,len=2"`
	Instructions string `json:"instructions" validate:"max=500"`
}

// OrderItemInput is the client's view of a cart line, checked against the server cart.
type OrderItemInput struct {
	DishID   string `json:"dishId" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

// InitiateInput is the checkout form.
type InitiateInput struct {
	Customer        CustomerInput    `json:"customer" validate:"required"`
	DeliveryAddress AddressInput     `json:"deliveryAddress" validate:"required"`
	Currency        string           `json:"currency" validate:"required,len=3"`
	PaymentType     string           `json:"paymentType" validate:"omitempty,oneof=card"`
	TotalAmount     *decimal.Decimal `json:"totalAmount,omitempty"`
	OrderItems      []OrderItemInput `json:"orderItems,omitempty" validate:"omitempty,dive"`
	CouponCode      string           `json:"couponCode" validate:"omitempty,max=64"`
	SourceID        string           `json:"sourceId" validate:"omitempty,max=255"`
}

// InitiateResult tells the browser where to go next.
type InitiateResult struct {
	PaymentID         uuid.UUID             `json:"paymentId"`
	OrderID           uuid.UUID             `json:"orderId"`
	RedirectURL       string                `json:"redirectUrl"`
	Provider          enums.PaymentProvider `json:"provider"`
	AttemptSequence   int                   `json:"attemptSequence"`
	RemainingAttempts int                   `json:"remainingAttempts"`
	Outcome           *OutcomeResult        `json:"outcome,omitempty"`
}

// InitiatorDeps wires the initiator.
type InitiatorDeps struct {
	Attempts   Repository
	Tx         txRunner
	Cart       cartReader
	Processor  Processor
	Policy     *RetryPolicy
	Outcomes   *OutcomeHandler
	SuccessURL string
	FailureURL string
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

// Initiator opens payment attempts for the session cart.
type Initiator struct {
	attempts   Repository
	tx         txRunner
	cart       cartReader
	processor  Processor
	policy     *RetryPolicy
	outcomes   *OutcomeHandler
	successURL string
	failureURL string
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewInitiator validates the wiring.
func NewInitiator(d InitiatorDeps) (*Initiator, error) {
	switch {
	case d.Attempts == nil:
		return nil, fmt.Errorf("payments repository required")
	case d.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case d.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case d.Processor == nil:
		return nil, fmt.Errorf("payment processor required")
	case d.Policy == nil:
		return nil, fmt.Errorf("retry policy required")
	case d.Outcomes == nil:
		return nil, fmt.Errorf("outcome handler required")
	case d.SuccessURL == "" || d.FailureURL == "":
		return nil, fmt.Errorf("success and failure urls required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Initiator{
		attempts:   d.Attempts,
		tx:         d.Tx,
		cart:       d.Cart,
		processor:  d.Processor,
		policy:     d.Policy,
		outcomes:   d.Outcomes,
		successURL: d.SuccessURL,
		failureURL: d.FailureURL,
		metrics:    d.Metrics,
		logg:       d.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Initiate validates the cart, enforces the retry budget, asks the processor
// for a session and only then records the attempt.
func (i *Initiator) Initiate(ctx context.Context, sessionHash string, in InitiateInput) (*InitiateResult, error) {
	provider := string(i.processor.Provider())
	if sessionHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Customer.Email))
	if err := validateCustomer(in, email); err != nil {
		i.metrics.IncInitiation(provider, "invalid")
		return nil, err
	}

	c, err := i.prepareCart(ctx, sessionHash, in.CouponCode, email)
	if err != nil {
		i.metrics.IncInitiation(provider, "invalid")
		return nil, err
	}
	if err := validateAgainstCart(c, in); err != nil {
		i.metrics.IncInitiation(provider, "invalid")
		return nil, err
	}

	purchaseID := uuid.New()
	if c.PurchaseID != nil {
		purchaseID = *c.PurchaseID
	} else {
		c, err = i.cart.AttachPurchase(ctx, sessionHash, purchaseID)
		if err != nil {
			return nil, err
		}
		purchaseID = *c.PurchaseID
	}
	ctx = i.logg.WithField(ctx, "purchase_id", purchaseID.String())

	budget, err := i.policy.CanInitiate(ctx, purchaseID)
	if err != nil {
		i.metrics.IncInitiation(provider, "rejected")
		return nil, err
	}

	attempt, err := i.newAttempt(ctx, sessionHash, purchaseID, c, in, email)
	if err != nil {
		return nil, err
	}
	ctx = i.logg.WithPayment(ctx, attempt.ID.String(), purchaseID.String())

	charge, err := i.processor.Initiate(ctx, ChargeRequest{
		Attempt:        attempt,
		SourceID:       in.SourceID,
		SuccessURL:     redirectURL(i.successURL, attempt.ID, attempt.OrderRef, nil),
		CancelURL:      redirectURL(i.failureURL, attempt.ID, attempt.OrderRef, map[string]string{"reason": string(enums.DeclineUserCancelled)}),
		IdempotencyKey: idempotencyKeyFor(attempt.ID),
	})
	if err != nil {
		// nothing persisted, so the budget is untouched
		i.metrics.IncInitiation(provider, "error")
		i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "processor rejected payment initiation")
		return nil, err
	}

	attempt.ProviderSessionID = optionalString(charge.SessionID)
	attempt.ProviderPaymentRef = optionalString(charge.PaymentRef)
	attempt.RedirectURL = charge.RedirectURL
	if err := i.persist(ctx, attempt); err != nil {
		i.metrics.IncInitiation(provider, "error")
		return nil, err
	}
	i.metrics.IncInitiation(provider, "accepted")
	i.logg.Info(i.logg.WithField(ctx, "sequence", attempt.Sequence), "payment attempt opened")

	result := &InitiateResult{
		PaymentID:         attempt.ID,
		OrderID:           attempt.OrderRef,
		RedirectURL:       charge.RedirectURL,
		Provider:          attempt.Provider,
		AttemptSequence:   attempt.Sequence,
		RemainingAttempts: budget.RemainingAttempts,
	}

	if imm := charge.Immediate; imm != nil {
		var outcome *OutcomeResult
		if imm.Succeeded {
			outcome, err = i.outcomes.HandleSuccess(ctx, SuccessInput{
				PaymentID:  attempt.ID,
				OrderID:    attempt.OrderRef,
				Source:     SourceProcessor,
				Verified:   true,
				PaymentRef: charge.PaymentRef,
			})
		} else {
			outcome, err = i.outcomes.HandleFailure(ctx, FailureInput{
				PaymentID:  attempt.ID,
				Code:       imm.Code,
				Message:    imm.Message,
				Source:     SourceProcessor,
				PaymentRef: charge.PaymentRef,
			})
		}
		if err != nil {
			// the attempt stays pending and reconciliation picks it up
			i.logg.Error(ctx, "record synchronous payment outcome", err)
			return result, nil
		}
		result.Outcome = outcome
		if outcome.Retry != nil {
			result.RemainingAttempts = outcome.Retry.RemainingAttempts
		}
	}
	return result, nil
}

// prepareCart applies the coupon from the form and re-checks an attached
// coupon now that the customer is known.
func (i *Initiator) prepareCart(ctx context.Context, sessionHash, couponCode, email string) (*cart.Cart, error) {
	c, err := i.cart.Get(ctx, sessionHash)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	code := coupons.NormalizeCode(couponCode)
	if code == "" && c.Coupon != nil && c.Coupon.CustomerKey != email {
		code = c.Coupon.Code
	}
	if code == "" || (c.Coupon != nil && c.Coupon.Code == code && c.Coupon.CustomerKey == email) {
		return c, nil
	}

	// a rejected coupon comes back as a validation error and leaves the cart as it was
	updated, _, err := i.cart.ApplyCoupon(ctx, sessionHash, code, email)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (i *Initiator) newAttempt(ctx context.Context, sessionHash string, purchaseID uuid.UUID, c *cart.Cart, in InitiateInput, email string) (*models.PaymentAttempt, error) {
	existing, err := i.attempts.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase attempts")
	}
	orderRef := uuid.New()
	if len(existing) > 0 {
		orderRef = existing[0].OrderRef
	}
	sequence, err := i.attempts.NextSequence(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate attempt sequence")
	}

	var coupon *string
	if code := c.CouponCode(); code != "" {
		coupon = &code
	}
	return &models.PaymentAttempt{
		ID:              uuid.New(),
		PurchaseID:      purchaseID,
		Sequence:        sequence,
		OrderRef:        orderRef,
		Provider:        i.processor.Provider(),
		Outcome:         enums.PaymentOutcomePending,
		CartSessionHash: sessionHash,
		CartSnapshot:    dbtypes.NewJSON(c.OrderItems()),
		Customer: dbtypes.NewJSON(models.CustomerInfo{
			Name:  strings.TrimSpace(in.Customer.Name),
			Email: email,
			Phone: strings.TrimSpace(in.Customer.Phone),
		}),
		DeliveryAddress: dbtypes.NewJSON(models.DeliveryAddress{
			Line1:        strings.TrimSpace(in.DeliveryAddress.Line1),
			Line2:        strings.TrimSpace(in.DeliveryAddress.Line2),
			City:         strings.TrimSpace(in.DeliveryAddress.City),
			PostalCode:   strings.TrimSpace(in.DeliveryAddress.PostalCode),
			Country:      strings.ToUpper(strings.TrimSpace(in.DeliveryAddress.Country)),
			Instructions: strings.TrimSpace(in.DeliveryAddress.Instructions),
		}),
		SubtotalCents: c.SubtotalCents(),
		DiscountCents: c.DiscountCents(),
		TotalCents:    c.TotalCents(),
		Currency:      c.Currency,
		CouponCode:    coupon,
	}, nil
}

func (i *Initiator) persist(ctx context.Context, attempt *models.PaymentAttempt) error {
	err := i.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := i.attempts.WithTx(tx)
		if err := repo.SupersedePending(ctx, attempt.PurchaseID, i.now()); err != nil {
			return err
		}
		return repo.Create(ctx, attempt)
	})
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "another payment for this order was started at the same time")
	}
	i.logg.Error(ctx, "processor accepted a payment that could not be recorded", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
}

func validateCustomer(in InitiateInput, email string) error {
	if strings.TrimSpace(in.Customer.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid customer email is required")
	}
	a := in.DeliveryAddress
	if strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.PostalCode) == "" || strings.TrimSpace(a.Country) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is incomplete")
	}
	if in.PaymentType != "" && in.PaymentType != "card" {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment type")
	}
	return nil
}

// validateAgainstCart rejects a form that does not describe the server cart.
func validateAgainstCart(c *cart.Cart, in InitiateInput) error {
	currency, err := enums.ParseCurrency(in.Currency)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if currency != c.Currency {
		return pkgerrors.New(pkgerrors.CodeValidation, "currency does not match the cart").
			WithDetails(map[string]string{"cartCurrency": string(c.Currency)})
	}
	total := c.TotalCents()
	if total <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero")
	}
	if in.TotalAmount != nil && !in.TotalAmount.Equal(decimal.New(total, -2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "total does not match the cart").
			WithDetails(map[string]string{"cartTotal": decimal.New(total, -2).StringFixed(2)})
	}
	if len(in.OrderItems) > 0 {
		want := map[string]int{}
		for _, l := range c.Lines {
			want[l.DishID] += l.Quantity
		}
		got := map[string]int{}
		for _, it := range in.OrderItems {
			got[it.DishID] += it.Quantity
		}
		if len(want) != len(got) {
			return errItemsMismatch
		}
		for dish, qty := range want {
			if got[dish] != qty {
				return errItemsMismatch
			}
		}
	}
	return nil
}

var errItemsMismatch = pkgerrors.New(pkgerrors.CodeValidation, "order items do not match the cart")

func idempotencyKeyFor(paymentID uuid.UUID) string {
	return "pay-" + paymentID.String()
}

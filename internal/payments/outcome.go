package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/internal/coupons"
	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/payloads"
)

// OutcomeConsumer scopes the Redis guard keys of the outcome handler.
const OutcomeConsumer = "payment-outcome"

var (
	errAlreadyResolved = errors.New("attempt resolved concurrently")
	errOrderExists     = errors.New("purchase order already exists")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type couponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code, customerKey string, orderID uuid.UUID, discountCents int64) error
}

type cartClearer interface {
	ClearForPurchase(ctx context.Context, sessionHash string, purchaseID uuid.UUID) (bool, error)
}

// OutcomeGuard is the fast duplicate check in front of the database.
type OutcomeGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, id uuid.UUID) error
}

// Source records where an outcome signal came from.
type Source string

const (
	SourceBrowser   Source = "browser"
	SourceWebhook   Source = "webhook"
	SourceProcessor Source = "processor"
	SourceReconcile Source = "reconcile"
)

// SuccessInput reports a completed payment.
type SuccessInput struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Source    Source
	// Verified skips the processor lookup; set by webhooks, reconciliation and
	// synchronous processors that already hold the provider's answer.
	Verified   bool
	PaymentRef string
}

// FailureInput reports a payment that did not complete.
type FailureInput struct {
	PaymentID  uuid.UUID
	Code       string
	Message    string
	Source     Source
	PaymentRef string
}

// OutcomeResult is returned to the browser for both fresh and replayed signals.
type OutcomeResult struct {
	PaymentID   uuid.UUID            `json:"paymentId"`
	PurchaseID  uuid.UUID            `json:"purchaseId"`
	Outcome     enums.PaymentOutcome `json:"outcome"`
	OrderID     *uuid.UUID           `json:"orderId,omitempty"`
	OrderNumber string               `json:"orderNumber,omitempty"`
	Reason      *enums.DeclineReason `json:"reason,omitempty"`
	Code        string               `json:"code,omitempty"`
	Message     string               `json:"message,omitempty"`
	Retry       *RetryStatus         `json:"retry,omitempty"`
	CartCleared bool                 `json:"cartCleared"`
	Replayed    bool                 `json:"replayed"`
}

// OutcomeDeps wires the outcome handler.
type OutcomeDeps struct {
	Attempts Repository
	Orders   orders.Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Coupons  couponRedeemer
	Cart     cartClearer
	Guard    OutcomeGuard
	Verifier Verifier
	Policy   *RetryPolicy
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// OutcomeHandler runs the state machine and executes its effects.
type OutcomeHandler struct {
	attempts Repository
	orders   orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	coupons  couponRedeemer
	cart     cartClearer
	guard    OutcomeGuard
	verifier Verifier
	policy   *RetryPolicy
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewOutcomeHandler validates the wiring. Coupons, Guard, Verifier and Metrics are optional.
func NewOutcomeHandler(d OutcomeDeps) (*OutcomeHandler, error) {
	switch {
	case d.Attempts == nil:
		return nil, fmt.Errorf("payments repository required")
	case d.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case d.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case d.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case d.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case d.Policy == nil:
		return nil, fmt.Errorf("retry policy required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &OutcomeHandler{
		attempts: d.Attempts,
		orders:   d.Orders,
		tx:       d.Tx,
		outbox:   d.Outbox,
		coupons:  d.Coupons,
		cart:     d.Cart,
		guard:    d.Guard,
		verifier: d.Verifier,
		policy:   d.Policy,
		metrics:  d.Metrics,
		logg:     d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleSuccess finalizes the purchase: order, coupon, event, then cart clear.
// A processor-confirmed capture also finalizes an attempt that was recorded
// as failed.
func (h *OutcomeHandler) HandleSuccess(ctx context.Context, in SuccessInput) (*OutcomeResult, error) {
	attempt, err := h.load(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	ctx = h.logg.WithPayment(ctx, attempt.ID.String(), attempt.PurchaseID.String())
	if in.OrderID != uuid.Nil && in.OrderID != attempt.OrderRef {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference does not match payment")
	}
	if attempt.Outcome == enums.PaymentOutcomeSucceeded {
		return h.replay(ctx, attempt)
	}
	if attempt.Outcome.IsTerminal() && !in.Verified && h.verifier == nil {
		return h.replay(ctx, attempt)
	}

	release, dup, err := h.acquire(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return h.inFlight(ctx, attempt.ID)
	}
	defer release()

	ref, captured := in.PaymentRef, in.Verified
	if !in.Verified && h.verifier != nil {
		v, err := h.verifier.Verify(ctx, attempt)
		if err != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "payment verification unavailable")
			return h.unchanged(ctx, attempt)
		}
		switch v.Status {
		case VerificationPending:
			return h.unchanged(ctx, attempt)
		case VerificationFailed:
			if attempt.Outcome.IsTerminal() {
				return h.replay(ctx, attempt)
			}
			sig := FailureSignal{PaymentID: attempt.ID, Reason: v.Reason, Code: v.Code, Message: v.Reason.FriendlyMessage()}
			return h.fail(ctx, attempt, sig, v.PaymentRef)
		}
		ref, captured = v.PaymentRef, true
	}

	return h.succeed(ctx, attempt, SuccessSignal{PaymentID: attempt.ID, OrderID: attempt.OrderRef, Captured: captured}, ref)
}

// HandleFailure records a declined, cancelled or errored attempt. The cart is
// left alone. Browser reports are checked with the processor first when a
// verifier is configured: a session that was paid after all is finalized.
func (h *OutcomeHandler) HandleFailure(ctx context.Context, in FailureInput) (*OutcomeResult, error) {
	attempt, err := h.load(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	ctx = h.logg.WithPayment(ctx, attempt.ID.String(), attempt.PurchaseID.String())
	if attempt.Outcome.IsTerminal() {
		return h.replay(ctx, attempt)
	}

	release, dup, err := h.acquire(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return h.inFlight(ctx, attempt.ID)
	}
	defer release()

	reason := ReasonFromCode(in.Code)
	message := in.Message
	if message == "" {
		message = reason.FriendlyMessage()
	}
	sig := FailureSignal{PaymentID: attempt.ID, Reason: reason, Code: in.Code, Message: message}
	ref := in.PaymentRef

	if in.Source == SourceBrowser && h.verifier != nil {
		v, err := h.verifier.Verify(ctx, attempt)
		switch {
		case err != nil:
			// the customer did leave the processor page; a later capture is
			// still finalized through HandleSuccess
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "payment verification unavailable, recording reported failure")
		case v.Status == VerificationPaid:
			h.logg.Warn(ctx, "failure reported for a paid session")
			return h.succeed(ctx, attempt, SuccessSignal{PaymentID: attempt.ID, OrderID: attempt.OrderRef, Captured: true}, v.PaymentRef)
		case v.Status == VerificationFailed && v.Reason.IsValid():
			sig = FailureSignal{PaymentID: attempt.ID, Reason: v.Reason, Code: v.Code, Message: v.Reason.FriendlyMessage()}
			ref = v.PaymentRef
		}
	}
	return h.fail(ctx, attempt, sig, ref)
}

func (h *OutcomeHandler) succeed(ctx context.Context, attempt *models.PaymentAttempt, sig SuccessSignal, paymentRef string) (*OutcomeResult, error) {
	next, effects, err := Transition(StateFromAttempt(attempt), sig)
	if err != nil {
		return h.replayOrFail(ctx, attempt.ID, err)
	}
	if attempt.Outcome.IsTerminal() {
		h.logg.Warn(h.logg.WithField(ctx, "recorded_outcome", attempt.Outcome), "payment captured after a recorded failure")
	}

	var order, existing *models.Order
	for pass := 0; ; pass++ {
		order, existing, err = h.finalize(ctx, attempt, next, effects, paymentRef)
		// a sibling attempt committed the purchase order between our check and insert
		if errors.Is(err, errOrderExists) && pass == 0 {
			continue
		}
		break
	}
	if err != nil {
		return h.replayOrFail(ctx, attempt.ID, err)
	}
	h.metrics.IncOutcome(string(enums.PaymentOutcomeSucceeded))

	result := &OutcomeResult{
		PaymentID:  attempt.ID,
		PurchaseID: attempt.PurchaseID,
		Outcome:    enums.PaymentOutcomeSucceeded,
	}
	if existing != nil {
		h.logg.Warn(h.logg.WithOrderID(ctx, existing.ID.String()), "second successful payment for a completed purchase")
		result.OrderID = &existing.ID
		result.OrderNumber = existing.OrderNumber
		return result, nil
	}

	result.OrderID = &order.ID
	result.OrderNumber = order.OrderNumber
	if HasEffect(effects, EffectClearCart) {
		result.CartCleared = h.clearCart(ctx, attempt)
	}
	h.logg.Info(h.logg.WithOrderID(ctx, order.ID.String()), "payment succeeded, order created")
	return result, nil
}

// finalize runs the success effects in one transaction. When the purchase
// already has an order it returns that order as existing and only flags the
// extra charge.
func (h *OutcomeHandler) finalize(ctx context.Context, attempt *models.PaymentAttempt, next State, effects []Effect, paymentRef string) (order, existing *models.Order, err error) {
	now := h.now()
	err = h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if HasEffect(effects, EffectRecordAttempt) {
			affected, err := h.attempts.WithTx(tx).Resolve(ctx, attempt.ID, Resolution{
				From:               attempt.Outcome,
				Outcome:            next.Outcome(),
				ProviderPaymentRef: optionalString(paymentRef),
				ResolvedAt:         now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment outcome")
			}
			if affected == 0 {
				return errAlreadyResolved
			}
		}

		prior, err := h.orders.WithTx(tx).FindByID(ctx, attempt.OrderRef)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase order")
		}
		if prior != nil {
			existing = prior
			return h.emitDuplicateCharge(ctx, tx, attempt, prior, paymentRef)
		}

		if HasEffect(effects, EffectCreateOrder) {
			order, err = h.createOrder(ctx, tx, attempt, paymentRef)
			if err != nil {
				return err
			}
		}
		if HasEffect(effects, EffectRedeemCoupon) && attempt.CouponCode != nil && h.coupons != nil {
			if err := h.redeemCoupon(ctx, tx, attempt, order.ID); err != nil {
				return err
			}
		}
		return h.outbox.Emit(ctx, tx, orderCreatedEvent(attempt, order))
	})
	return order, existing, err
}

func (h *OutcomeHandler) fail(ctx context.Context, attempt *models.PaymentAttempt, sig FailureSignal, paymentRef string) (*OutcomeResult, error) {
	next, _, err := Transition(StateFromAttempt(attempt), sig)
	if err != nil {
		return h.replayOrFail(ctx, attempt.ID, err)
	}
	reason := reasonOf(next, sig.Reason)
	outcome := next.Outcome()

	var retry *RetryStatus
	err = h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := h.attempts.WithTx(tx)
		affected, err := repo.Resolve(ctx, attempt.ID, Resolution{
			Outcome:            outcome,
			DeclineReason:      &reason,
			DeclineCode:        optionalString(sig.Code),
			DeclineMessage:     optionalString(sig.Message),
			ProviderPaymentRef: optionalString(paymentRef),
			ResolvedAt:         h.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment outcome")
		}
		if affected == 0 {
			return errAlreadyResolved
		}

		retry, err = h.policy.forPurchase(ctx, repo, attempt.PurchaseID)
		if err != nil {
			return err
		}
		return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Data: payloads.PaymentFailedEvent{
				PaymentAttemptID: attempt.ID,
				PurchaseID:       attempt.PurchaseID,
				Sequence:         attempt.Sequence,
				Outcome:          outcome,
				Reason:           reason,
				AttemptsUsed:     retry.AttemptsUsed,
				RemainingRetries: retry.RemainingAttempts,
			},
		})
	})
	if err != nil {
		return h.replayOrFail(ctx, attempt.ID, err)
	}
	h.metrics.IncOutcome(string(outcome))
	retry.PaymentID = attempt.ID

	h.logg.Info(h.logg.WithFields(ctx, map[string]any{
		"outcome":   outcome,
		"reason":    reason,
		"remaining": retry.RemainingAttempts,
	}), "payment attempt failed")

	return &OutcomeResult{
		PaymentID:  attempt.ID,
		PurchaseID: attempt.PurchaseID,
		Outcome:    outcome,
		Reason:     &reason,
		Code:       displayCode(sig.Code, reason),
		Message:    reason.FriendlyMessage(),
		Retry:      retry,
	}, nil
}

func (h *OutcomeHandler) createOrder(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, paymentRef string) (*models.Order, error) {
	number, err := orders.NewOrderNumber(h.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}
	order := &models.Order{
		ID:                 attempt.OrderRef,
		OrderNumber:        number,
		PurchaseID:         attempt.PurchaseID,
		PaymentAttemptID:   attempt.ID,
		CartSessionHash:    attempt.CartSessionHash,
		Items:              attempt.CartSnapshot,
		DeliveryAddress:    attempt.DeliveryAddress,
		Customer:           attempt.Customer,
		SubtotalCents:      attempt.SubtotalCents,
		DiscountCents:      attempt.DiscountCents,
		TotalCents:         attempt.TotalCents,
		Currency:           attempt.Currency,
		CouponCode:         attempt.CouponCode,
		Status:             enums.OrderStatusPending,
		RefundStatus:       enums.RefundStatusNone,
		Provider:           attempt.Provider,
		ProviderPaymentRef: optionalString(paymentRef),
	}
	if err := h.orders.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, errOrderExists
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// redeemCoupon skips coupons that stopped qualifying after initiation: the
// customer already paid the discounted total.
func (h *OutcomeHandler) redeemCoupon(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, orderID uuid.UUID) error {
	err := h.coupons.Redeem(ctx, tx, *attempt.CouponCode, attempt.Customer.Data.Email, orderID, attempt.DiscountCents)
	if err == nil {
		return nil
	}
	if errors.Is(err, coupons.ErrUsageLimitReached) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		h.logg.Warn(h.logg.WithFields(ctx, map[string]any{"coupon": *attempt.CouponCode, "error": err.Error()}), "coupon not redeemed at finalization")
		return nil
	}
	return err
}

// emitDuplicateCharge flags the extra capture for a manual refund, once per attempt.
func (h *OutcomeHandler) emitDuplicateCharge(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, existing *models.Order, paymentRef string) error {
	return h.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSucceededAfterCompletion,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   attempt.ID,
		Data: payloads.PaymentSucceededAfterCompletionEvent{
			PaymentAttemptID:   attempt.ID,
			PurchaseID:         attempt.PurchaseID,
			ExistingOrderID:    existing.ID,
			AmountCents:        attempt.TotalCents,
			Currency:           attempt.Currency,
			Provider:           attempt.Provider,
			ProviderPaymentRef: optionalString(paymentRef),
		},
	})
}

func (h *OutcomeHandler) clearCart(ctx context.Context, attempt *models.PaymentAttempt) bool {
	cleared, err := h.cart.ClearForPurchase(ctx, attempt.CartSessionHash, attempt.PurchaseID)
	if err != nil {
		// the next replay of the success signal clears it
		h.logg.Error(ctx, "clear cart after payment", err)
		return false
	}
	return cleared
}

// replay returns the stored result of a resolved attempt. A succeeded attempt
// re-runs the purchase-scoped cart clear, which is a no-op once done.
func (h *OutcomeHandler) replay(ctx context.Context, attempt *models.PaymentAttempt) (*OutcomeResult, error) {
	result := &OutcomeResult{
		PaymentID:  attempt.ID,
		PurchaseID: attempt.PurchaseID,
		Outcome:    attempt.Outcome,
		Replayed:   true,
	}
	if attempt.Outcome == enums.PaymentOutcomeSucceeded {
		order, err := h.orders.FindByPurchaseID(ctx, attempt.PurchaseID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order != nil {
			result.OrderID = &order.ID
			result.OrderNumber = order.OrderNumber
			if order.PaymentAttemptID == attempt.ID {
				result.CartCleared = h.clearCart(ctx, attempt)
			}
		}
		return result, nil
	}

	if attempt.DeclineReason != nil {
		reason := *attempt.DeclineReason
		result.Reason = &reason
		result.Message = reason.FriendlyMessage()
		code := ""
		if attempt.DeclineCode != nil {
			code = *attempt.DeclineCode
		}
		result.Code = displayCode(code, reason)
	}
	retry, err := h.policy.forPurchase(ctx, h.attempts, attempt.PurchaseID)
	if err != nil {
		return nil, err
	}
	retry.PaymentID = attempt.ID
	result.Retry = retry
	return result, nil
}

func (h *OutcomeHandler) replayOrFail(ctx context.Context, paymentID uuid.UUID, err error) (*OutcomeResult, error) {
	if !errors.Is(err, errAlreadyResolved) && !errors.Is(err, ErrTerminalState) {
		return nil, err
	}
	attempt, loadErr := h.load(ctx, paymentID)
	if loadErr != nil {
		return nil, loadErr
	}
	return h.replay(ctx, attempt)
}

// unchanged answers a signal that could not be confirmed: the attempt keeps
// whatever outcome it already had.
func (h *OutcomeHandler) unchanged(ctx context.Context, attempt *models.PaymentAttempt) (*OutcomeResult, error) {
	if attempt.Outcome.IsTerminal() {
		return h.replay(ctx, attempt)
	}
	return pendingResult(attempt), nil
}

// inFlight answers a duplicate that arrived while the first signal is still
// being processed.
func (h *OutcomeHandler) inFlight(ctx context.Context, paymentID uuid.UUID) (*OutcomeResult, error) {
	attempt, err := h.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if attempt.Outcome.IsTerminal() {
		return h.replay(ctx, attempt)
	}
	res := pendingResult(attempt)
	res.Replayed = true
	return res, nil
}

// acquire marks the payment id in Redis while one signal is processed. The
// returned release drops the mark; the conditional update stays the
// authoritative duplicate check. Guard errors fall through to the database.
func (h *OutcomeHandler) acquire(ctx context.Context, paymentID uuid.UUID) (func(), bool, error) {
	noop := func() {}
	if h.guard == nil {
		return noop, false, nil
	}
	dup, err := h.guard.CheckAndMarkProcessed(ctx, OutcomeConsumer, paymentID)
	if err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "outcome guard unavailable")
		return noop, false, nil
	}
	if dup {
		return noop, true, nil
	}
	return func() {
		if err := h.guard.Delete(context.WithoutCancel(ctx), OutcomeConsumer, paymentID); err != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "release outcome guard")
		}
	}, false, nil
}

func (h *OutcomeHandler) load(ctx context.Context, paymentID uuid.UUID) (*models.PaymentAttempt, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentId is required")
	}
	attempt, err := h.attempts.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	return attempt, nil
}

func pendingResult(attempt *models.PaymentAttempt) *OutcomeResult {
	return &OutcomeResult{
		PaymentID:  attempt.ID,
		PurchaseID: attempt.PurchaseID,
		Outcome:    enums.PaymentOutcomePending,
	}
}

func orderCreatedEvent(attempt *models.PaymentAttempt, order *models.Order) outbox.DomainEvent {
	count := 0
	for _, item := range order.Items.Data {
		count += item.Quantity
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCreatedEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			PurchaseID:       order.PurchaseID,
			PaymentAttemptID: attempt.ID,
			TotalCents:       order.TotalCents,
			DiscountCents:    order.DiscountCents,
			Currency:         order.Currency,
			CouponCode:       order.CouponCode,
			Provider:         order.Provider,
			ItemCount:        count,
			CustomerEmail:    order.Customer.Data.Email,
		},
	}
}

// displayCode is the verbatim processor code when one was reported.
func displayCode(raw string, reason enums.DeclineReason) string {
	if raw != "" {
		return raw
	}
	return string(reason)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

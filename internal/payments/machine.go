package payments

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// ErrTerminalState is returned when a signal reaches an attempt that already has an outcome.
var ErrTerminalState = errors.New("payment attempt already resolved")

// State is the lifecycle position of one payment attempt.
type State interface {
	Outcome() enums.PaymentOutcome
	isState()
}

// AwaitingOutcome is the only non-terminal state.
type AwaitingOutcome struct{}

// Succeeded carries the order the payment produced.
type Succeeded struct {
	OrderID uuid.UUID
}

type Declined struct {
	Reason enums.DeclineReason
}

type Cancelled struct{}

type Errored struct {
	Reason enums.DeclineReason
}

func (AwaitingOutcome) Outcome() enums.PaymentOutcome { return enums.PaymentOutcomePending }
func (Succeeded) Outcome() enums.PaymentOutcome       { return enums.PaymentOutcomeSucceeded }
func (Declined) Outcome() enums.PaymentOutcome        { return enums.PaymentOutcomeDeclined }
func (Cancelled) Outcome() enums.PaymentOutcome       { return enums.PaymentOutcomeCancelledByUser }
func (Errored) Outcome() enums.PaymentOutcome         { return enums.PaymentOutcomeError }

func (AwaitingOutcome) isState() {}
func (Succeeded) isState()       {}
func (Declined) isState()        {}
func (Cancelled) isState()       {}
func (Errored) isState()         {}

// Signal is an input reported by the browser, a webhook or reconciliation.
type Signal interface {
	Payment() uuid.UUID
	isSignal()
}

// SuccessSignal reports a completed charge. Captured is set only when the
// processor itself confirmed the money moved.
type SuccessSignal struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Captured  bool
}

// FailureSignal reports a charge that did not complete. Code is the verbatim
// processor code; Reason is its normalized form.
type FailureSignal struct {
	PaymentID uuid.UUID
	Reason    enums.DeclineReason
	Code      string
	Message   string
}

func (s SuccessSignal) Payment() uuid.UUID { return s.PaymentID }
func (s FailureSignal) Payment() uuid.UUID { return s.PaymentID }
func (SuccessSignal) isSignal()            {}
func (FailureSignal) isSignal()            {}

// Effect is a side effect the outcome handler must execute after a transition.
type Effect string

const (
	EffectRecordAttempt      Effect = "record_attempt"
	EffectCreateOrder        Effect = "create_order"
	EffectRedeemCoupon       Effect = "redeem_coupon"
	EffectClearCart          Effect = "clear_cart"
	EffectConsultRetryPolicy Effect = "consult_retry_policy"
)

// Transition is the pure outcome state machine. It never touches storage.
//
// Terminal states reject every signal with one exception: a captured success
// overrides a recorded failure, since a paid-for cart must become an order.
func Transition(state State, sig Signal) (State, []Effect, error) {
	if state == nil || sig == nil {
		return nil, nil, errors.New("state and signal are required")
	}
	if _, ok := state.(AwaitingOutcome); !ok {
		if s, ok := sig.(SuccessSignal); ok && s.Captured && IsFailureState(state) {
			return Succeeded{OrderID: s.OrderID}, successEffects(), nil
		}
		return state, nil, ErrTerminalState
	}

	switch s := sig.(type) {
	case SuccessSignal:
		return Succeeded{OrderID: s.OrderID}, successEffects(), nil
	case FailureSignal:
		reason := s.Reason
		if !reason.IsValid() {
			reason = enums.DeclineCardDeclined
		}
		var next State
		switch reason.Outcome() {
		case enums.PaymentOutcomeCancelledByUser:
			next = Cancelled{}
		case enums.PaymentOutcomeError:
			next = Errored{Reason: reason}
		default:
			next = Declined{Reason: reason}
		}
		return next, []Effect{EffectRecordAttempt, EffectConsultRetryPolicy}, nil
	default:
		return state, nil, fmt.Errorf("unsupported signal %T", sig)
	}
}

func successEffects() []Effect {
	return []Effect{EffectRecordAttempt, EffectCreateOrder, EffectRedeemCoupon, EffectClearCart}
}

// IsFailureState reports whether state is one of the failed terminal outcomes.
func IsFailureState(state State) bool {
	switch state.(type) {
	case Declined, Cancelled, Errored:
		return true
	}
	return false
}

// StateFromAttempt rebuilds the machine state from a persisted attempt.
func StateFromAttempt(a *models.PaymentAttempt) State {
	reason := enums.DeclineCardDeclined
	if a.DeclineReason != nil {
		reason = *a.DeclineReason
	}
	switch a.Outcome {
	case enums.PaymentOutcomeSucceeded:
		return Succeeded{OrderID: a.OrderRef}
	case enums.PaymentOutcomeDeclined:
		return Declined{Reason: reason}
	case enums.PaymentOutcomeCancelledByUser:
		return Cancelled{}
	case enums.PaymentOutcomeError:
		return Errored{Reason: reason}
	default:
		return AwaitingOutcome{}
	}
}

// HasEffect reports whether effects contains e.
func HasEffect(effects []Effect, e Effect) bool {
	for _, candidate := range effects {
		if candidate == e {
			return true
		}
	}
	return false
}

// reasonOf returns the decline reason a failure state carries, if any.
func reasonOf(state State, fallback enums.DeclineReason) enums.DeclineReason {
	switch s := state.(type) {
	case Declined:
		return s.Reason
	case Errored:
		return s.Reason
	case Cancelled:
		return enums.DeclineUserCancelled
	default:
		return fallback
	}
}

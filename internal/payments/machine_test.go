package payments

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

func TestTransitionFromAwaiting(t *testing.T) {
	paymentID, orderID := uuid.New(), uuid.New()
	cases := []struct {
		name        string
		sig         Signal
		wantOutcome enums.PaymentOutcome
		wantEffects []Effect
	}{
		{
			name:        "success",
			sig:         SuccessSignal{PaymentID: paymentID, OrderID: orderID},
			wantOutcome: enums.PaymentOutcomeSucceeded,
			wantEffects: []Effect{EffectRecordAttempt, EffectCreateOrder, EffectRedeemCoupon, EffectClearCart},
		},
		{
			name:        "decline",
			sig:         FailureSignal{PaymentID: paymentID, Reason: enums.DeclineInsufficientFunds},
			wantOutcome: enums.PaymentOutcomeDeclined,
			wantEffects: []Effect{EffectRecordAttempt, EffectConsultRetryPolicy},
		},
		{
			name:        "cancel",
			sig:         FailureSignal{PaymentID: paymentID, Reason: enums.DeclineUserCancelled},
			wantOutcome: enums.PaymentOutcomeCancelledByUser,
			wantEffects: []Effect{EffectRecordAttempt, EffectConsultRetryPolicy},
		},
		{
			name:        "network",
			sig:         FailureSignal{PaymentID: paymentID, Reason: enums.DeclineNetworkError},
			wantOutcome: enums.PaymentOutcomeError,
			wantEffects: []Effect{EffectRecordAttempt, EffectConsultRetryPolicy},
		},
		{
			name:        "unknown reason declines",
			sig:         FailureSignal{PaymentID: paymentID, Reason: "do_not_honor"},
			wantOutcome: enums.PaymentOutcomeDeclined,
			wantEffects: []Effect{EffectRecordAttempt, EffectConsultRetryPolicy},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, effects, err := Transition(AwaitingOutcome{}, tc.sig)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next.Outcome() != tc.wantOutcome {
				t.Fatalf("outcome = %s, want %s", next.Outcome(), tc.wantOutcome)
			}
			if len(effects) != len(tc.wantEffects) {
				t.Fatalf("effects = %v, want %v", effects, tc.wantEffects)
			}
			for i := range effects {
				if effects[i] != tc.wantEffects[i] {
					t.Fatalf("effects = %v, want %v", effects, tc.wantEffects)
				}
			}
		})
	}
}

func TestTransitionSuccessCarriesOrder(t *testing.T) {
	orderID := uuid.New()
	next, _, err := Transition(AwaitingOutcome{}, SuccessSignal{PaymentID: uuid.New(), OrderID: orderID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := next.(Succeeded)
	if !ok || s.OrderID != orderID {
		t.Fatalf("unexpected state %#v", next)
	}
}

func TestTerminalStatesRejectUncapturedSignals(t *testing.T) {
	terminal := []State{
		Succeeded{OrderID: uuid.New()},
		Declined{Reason: enums.DeclineCardDeclined},
		Cancelled{},
		Errored{Reason: enums.DeclineProcessingError},
	}
	signals := []Signal{
		SuccessSignal{PaymentID: uuid.New()},
		FailureSignal{PaymentID: uuid.New(), Reason: enums.DeclineCardDeclined},
	}
	for _, st := range terminal {
		for _, sig := range signals {
			next, effects, err := Transition(st, sig)
			if !errors.Is(err, ErrTerminalState) {
				t.Fatalf("%T + %T: expected ErrTerminalState, got %v", st, sig, err)
			}
			if next != st || len(effects) != 0 {
				t.Fatalf("%T + %T: state changed or effects emitted", st, sig)
			}
		}
	}
}

func TestCapturedSuccessOverridesRecordedFailure(t *testing.T) {
	orderID := uuid.New()
	captured := SuccessSignal{PaymentID: uuid.New(), OrderID: orderID, Captured: true}

	for _, st := range []State{Declined{Reason: enums.DeclineCardDeclined}, Cancelled{}, Errored{Reason: enums.DeclineNetworkError}} {
		next, effects, err := Transition(st, captured)
		if err != nil {
			t.Fatalf("%T: unexpected error: %v", st, err)
		}
		if next != (Succeeded{OrderID: orderID}) {
			t.Fatalf("%T: unexpected state %#v", st, next)
		}
		if !HasEffect(effects, EffectCreateOrder) || !HasEffect(effects, EffectClearCart) {
			t.Fatalf("%T: missing finalization effects %v", st, effects)
		}
	}

	succeeded := Succeeded{OrderID: orderID}
	next, effects, err := Transition(succeeded, captured)
	if !errors.Is(err, ErrTerminalState) || next != succeeded || len(effects) != 0 {
		t.Fatalf("succeeded state must reject a captured success, got %#v %v %v", next, effects, err)
	}
}

func TestStateFromAttempt(t *testing.T) {
	reason := enums.DeclineExpiredCard
	cases := map[enums.PaymentOutcome]State{
		enums.PaymentOutcomePending:         AwaitingOutcome{},
		enums.PaymentOutcomeDeclined:        Declined{Reason: reason},
		enums.PaymentOutcomeCancelledByUser: Cancelled{},
		enums.PaymentOutcomeError:           Errored{Reason: reason},
	}
	for outcome, want := range cases {
		got := StateFromAttempt(&models.PaymentAttempt{Outcome: outcome, DeclineReason: &reason})
		if got != want {
			t.Fatalf("%s: got %#v want %#v", outcome, got, want)
		}
	}
	ref := uuid.New()
	if got := StateFromAttempt(&models.PaymentAttempt{Outcome: enums.PaymentOutcomeSucceeded, OrderRef: ref}); got != (Succeeded{OrderID: ref}) {
		t.Fatalf("unexpected succeeded state %#v", got)
	}
}

func TestReasonFromCode(t *testing.T) {
	cases := map[string]enums.DeclineReason{
		"":                   enums.DeclineCardDeclined,
		"insufficient_funds": enums.DeclineInsufficientFunds,
		"INSUFFICIENT_FUNDS": enums.DeclineInsufficientFunds,
		"CARD_EXPIRED":       enums.DeclineExpiredCard,
		"incorrect_cvc":      enums.DeclineInvalidCard,
		"stolen_card":        enums.DeclineFraudSuspected,
		"user_cancelled":     enums.DeclineUserCancelled,
		"network_error":      enums.DeclineNetworkError,
		"something_new":      enums.DeclineCardDeclined,
	}
	for raw, want := range cases {
		if got := ReasonFromCode(raw); got != want {
			t.Fatalf("ReasonFromCode(%q) = %s, want %s", raw, got, want)
		}
	}
}

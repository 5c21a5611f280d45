package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusPreparing, true},
		{OrderStatusPreparing, OrderStatusOutForDelivery, true},
		{OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusPreparing, false},
		{OrderStatusConfirmed, OrderStatusPending, false},
		{OrderStatusPreparing, OrderStatusCancelled, true},
		{OrderStatusOutForDelivery, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestOrderStatusLabels(t *testing.T) {
	for _, status := range validOrderStatuses {
		if status.Label() == "Status unavailable" {
			t.Fatalf("status %s is missing a label", status)
		}
	}
	if OrderStatus("lost").Label() != "Status unavailable" {
		t.Fatalf("unknown status should use the fallback label")
	}
}

func TestDeclineReasonOutcomes(t *testing.T) {
	cases := map[DeclineReason]PaymentOutcome{
		DeclineCardDeclined:      PaymentOutcomeDeclined,
		DeclineInsufficientFunds: PaymentOutcomeDeclined,
		DeclineExpiredCard:       PaymentOutcomeDeclined,
		DeclineInvalidCard:       PaymentOutcomeDeclined,
		DeclineFraudSuspected:    PaymentOutcomeDeclined,
		DeclineUserCancelled:     PaymentOutcomeCancelledByUser,
		DeclineProcessingError:   PaymentOutcomeError,
		DeclineNetworkError:      PaymentOutcomeError,
	}
	for reason, want := range cases {
		if got := reason.Outcome(); got != want {
			t.Fatalf("%s: expected %s got %s", reason, want, got)
		}
		if !reason.Outcome().ConsumesBudget() {
			t.Fatalf("%s: terminal failure should consume budget", reason)
		}
		if reason.FriendlyMessage() == "" {
			t.Fatalf("%s: missing friendly message", reason)
		}
	}
	if _, err := ParseDeclineReason("stolen_card"); err == nil {
		t.Fatalf("expected unknown decline code to be rejected")
	}
}

func TestPaymentOutcomeBudget(t *testing.T) {
	if PaymentOutcomePending.ConsumesBudget() || PaymentOutcomePending.IsTerminal() {
		t.Fatalf("pending must not be terminal nor consume budget")
	}
	if PaymentOutcomeSucceeded.ConsumesBudget() {
		t.Fatalf("succeeded must not consume budget")
	}
	if !PaymentOutcomeSucceeded.IsTerminal() {
		t.Fatalf("succeeded is terminal")
	}
}

func TestRefundRequestTransitions(t *testing.T) {
	if !RefundRequestRequested.CanTransitionTo(RefundRequestApproved) ||
		!RefundRequestRequested.CanTransitionTo(RefundRequestRejected) ||
		!RefundRequestApproved.CanTransitionTo(RefundRequestProcessed) {
		t.Fatalf("expected forward transitions to be allowed")
	}
	for _, bad := range [][2]RefundRequestStatus{
		{RefundRequestApproved, RefundRequestRequested},
		{RefundRequestRejected, RefundRequestApproved},
		{RefundRequestProcessed, RefundRequestApproved},
		{RefundRequestRequested, RefundRequestProcessed},
		{RefundRequestApproved, RefundRequestRejected},
	} {
		if bad[0].CanTransitionTo(bad[1]) {
			t.Fatalf("%s -> %s should be rejected", bad[0], bad[1])
		}
	}
}

func TestRefundStatusFor(t *testing.T) {
	if RefundStatusFor(0, 5000) != RefundStatusNone {
		t.Fatalf("expected none")
	}
	if RefundStatusFor(3000, 5000) != RefundStatusPartial {
		t.Fatalf("expected partial")
	}
	if RefundStatusFor(5000, 5000) != RefundStatusFull {
		t.Fatalf("expected full")
	}
}

func TestParseCurrencyIsCaseInsensitive(t *testing.T) {
	c, err := ParseCurrency(" eur ")
	if err != nil || c != CurrencyEUR {
		t.Fatalf("expected EUR, got %q err=%v", c, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatalf("expected BTC to be rejected")
	}
}

package enums

import "fmt"

// PaymentOutcome is the result recorded on a payment attempt.
type PaymentOutcome string

const (
	PaymentOutcomePending         PaymentOutcome = "pending"
	PaymentOutcomeSucceeded       PaymentOutcome = "succeeded"
	PaymentOutcomeDeclined        PaymentOutcome = "declined"
	PaymentOutcomeCancelledByUser PaymentOutcome = "cancelled_by_user"
	PaymentOutcomeError           PaymentOutcome = "error"
)

var validPaymentOutcomes = []PaymentOutcome{
	PaymentOutcomePending,
	PaymentOutcomeSucceeded,
	PaymentOutcomeDeclined,
	PaymentOutcomeCancelledByUser,
	PaymentOutcomeError,
}

// BudgetConsumingOutcomes are the terminal outcomes that use up a retry slot.
var BudgetConsumingOutcomes = []PaymentOutcome{
	PaymentOutcomeDeclined,
	PaymentOutcomeCancelledByUser,
	PaymentOutcomeError,
}

// String implements fmt.Stringer.
func (o PaymentOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known PaymentOutcome.
func (o PaymentOutcome) IsValid() bool {
	for _, candidate := range validPaymentOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the outcome is anything other than pending.
func (o PaymentOutcome) IsTerminal() bool {
	return o.IsValid() && o != PaymentOutcomePending
}

// ConsumesBudget reports whether the outcome counts against the retry budget.
func (o PaymentOutcome) ConsumesBudget() bool {
	for _, candidate := range BudgetConsumingOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParsePaymentOutcome converts raw input into a PaymentOutcome.
func ParsePaymentOutcome(value string) (PaymentOutcome, error) {
	for _, candidate := range validPaymentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment outcome %q", value)
}

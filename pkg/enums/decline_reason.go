package enums

import "fmt"

// DeclineReason is the processor-reported failure code carried on the
// failure redirect.
type DeclineReason string

const (
	DeclineCardDeclined      DeclineReason = "card_declined"
	DeclineInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineExpiredCard       DeclineReason = "expired_card"
	DeclineInvalidCard       DeclineReason = "invalid_card"
	DeclineUserCancelled     DeclineReason = "user_cancelled"
	DeclineFraudSuspected    DeclineReason = "fraud_suspected"
	DeclineProcessingError   DeclineReason = "processing_error"
	DeclineNetworkError      DeclineReason = "network_error"
)

var validDeclineReasons = []DeclineReason{
	DeclineCardDeclined,
	DeclineInsufficientFunds,
	DeclineExpiredCard,
	DeclineInvalidCard,
	DeclineUserCancelled,
	DeclineFraudSuspected,
	DeclineProcessingError,
	DeclineNetworkError,
}

var declineMessages = map[DeclineReason]string{
	DeclineCardDeclined:      "Your card was declined. Please try a different card or payment method.",
	DeclineInsufficientFunds: "Your card has insufficient funds. Please use another card.",
	DeclineExpiredCard:       "Your card has expired. Please check the expiry date or use another card.",
	DeclineInvalidCard:       "The card details were not accepted. Please check them and try again.",
	DeclineUserCancelled:     "You cancelled the payment. Your cart is still here when you are ready.",
	DeclineFraudSuspected:    "The payment was blocked for security reasons. Please contact your bank or use another card.",
	DeclineProcessingError:   "The payment provider could not process the payment. Please try again.",
	DeclineNetworkError:      "We lost the connection to the payment provider. Please try again.",
}

// String implements fmt.Stringer.
func (r DeclineReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known DeclineReason.
func (r DeclineReason) IsValid() bool {
	for _, candidate := range validDeclineReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// Outcome maps the reason onto the attempt outcome it produces.
func (r DeclineReason) Outcome() PaymentOutcome {
	switch r {
	case DeclineUserCancelled:
		return PaymentOutcomeCancelledByUser
	case DeclineProcessingError, DeclineNetworkError:
		return PaymentOutcomeError
	default:
		return PaymentOutcomeDeclined
	}
}

// FriendlyMessage returns the customer-facing explanation for the code.
func (r DeclineReason) FriendlyMessage() string {
	if msg, ok := declineMessages[r]; ok {
		return msg
	}
	return "The payment did not go through. Please try again."
}

// ParseDeclineReason converts raw input into a DeclineReason.
func ParseDeclineReason(value string) (DeclineReason, error) {
	for _, candidate := range validDeclineReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decline reason %q", value)
}

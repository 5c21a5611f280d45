package payments

import (
	"strings"

	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// processorCodes folds Stripe and Square decline codes onto the reasons the
// storefront understands. Codes are compared lower-cased.
var processorCodes = map[string]enums.DeclineReason{
	// stripe
	"generic_decline":          enums.DeclineCardDeclined,
	"do_not_honor":             enums.DeclineCardDeclined,
	"card_not_supported":       enums.DeclineCardDeclined,
	"insufficient_funds":       enums.DeclineInsufficientFunds,
	"expired_card":             enums.DeclineExpiredCard,
	"incorrect_number":         enums.DeclineInvalidCard,
	"invalid_number":           enums.DeclineInvalidCard,
	"incorrect_cvc":            enums.DeclineInvalidCard,
	"invalid_cvc":              enums.DeclineInvalidCard,
	"invalid_expiry_month":     enums.DeclineInvalidCard,
	"invalid_expiry_year":      enums.DeclineInvalidCard,
	"fraudulent":               enums.DeclineFraudSuspected,
	"lost_card":                enums.DeclineFraudSuspected,
	"stolen_card":              enums.DeclineFraudSuspected,
	"pickup_card":              enums.DeclineFraudSuspected,
	"processing_error":         enums.DeclineProcessingError,
	"authentication_required":  enums.DeclineCardDeclined,
	"payment_intent_cancelled": enums.DeclineUserCancelled,
	"session_expired":          enums.DeclineUserCancelled,
	// square
	"card_expired":                        enums.DeclineExpiredCard,
	"cvv_failure":                         enums.DeclineInvalidCard,
	"invalid_card":                        enums.DeclineInvalidCard,
	"invalid_card_data":                   enums.DeclineInvalidCard,
	"invalid_expiration":                  enums.DeclineInvalidCard,
	"pan_failure":                         enums.DeclineInvalidCard,
	"expiration_failure":                  enums.DeclineInvalidCard,
	"address_verification_failure":        enums.DeclineInvalidCard,
	"transaction_limit":                   enums.DeclineInsufficientFunds,
	"card_declined_calling_bank":          enums.DeclineFraudSuspected,
	"card_declined_verification_required": enums.DeclineCardDeclined,
	"temporary_error":                     enums.DeclineProcessingError,
}

// ReasonFromCode normalizes a raw processor or redirect code. Unknown codes
// count as a plain card decline; callers keep the raw code for display.
func ReasonFromCode(raw string) enums.DeclineReason {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return enums.DeclineCardDeclined
	}
	if reason, err := enums.ParseDeclineReason(code); err == nil {
		return reason
	}
	if reason, ok := processorCodes[code]; ok {
		return reason
	}
	return enums.DeclineCardDeclined
}

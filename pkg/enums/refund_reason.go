package enums

import "fmt"

// RefundReason is the fixed set of reasons an admin can pick.
type RefundReason string

const (
	RefundReasonCustomerRequest RefundReason = "customer_request"
	RefundReasonOrderCancelled  RefundReason = "order_cancelled"
	RefundReasonItemUnavailable RefundReason = "item_unavailable"
	RefundReasonQualityIssue    RefundReason = "quality_issue"
	RefundReasonLateDelivery    RefundReason = "late_delivery"
	RefundReasonDuplicateCharge RefundReason = "duplicate_charge"
	RefundReasonOther           RefundReason = "other"
)

var validRefundReasons = []RefundReason{
	RefundReasonCustomerRequest,
	RefundReasonOrderCancelled,
	RefundReasonItemUnavailable,
	RefundReasonQualityIssue,
	RefundReasonLateDelivery,
	RefundReasonDuplicateCharge,
	RefundReasonOther,
}

// String implements fmt.Stringer.
func (r RefundReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundReason.
func (r RefundReason) IsValid() bool {
	for _, candidate := range validRefundReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundReason converts raw input into a RefundReason.
func ParseRefundReason(value string) (RefundReason, error) {
	for _, candidate := range validRefundReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund reason %q", value)
}

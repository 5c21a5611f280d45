package enums

import "fmt"

// RefundRequestStatus is the admin workflow state of a refund request.
type RefundRequestStatus string

const (
	RefundRequestRequested RefundRequestStatus = "requested"
	RefundRequestApproved  RefundRequestStatus = "approved"
	RefundRequestRejected  RefundRequestStatus = "rejected"
	RefundRequestProcessed RefundRequestStatus = "processed"
)

var validRefundRequestStatuses = []RefundRequestStatus{
	RefundRequestRequested,
	RefundRequestApproved,
	RefundRequestRejected,
	RefundRequestProcessed,
}

var refundTransitions = map[RefundRequestStatus][]RefundRequestStatus{
	RefundRequestRequested: {RefundRequestApproved, RefundRequestRejected},
	RefundRequestApproved:  {RefundRequestProcessed},
}

var refundTimelineLabels = map[RefundRequestStatus]string{
	RefundRequestRequested: "Refund requested",
	RefundRequestApproved:  "Refund approved",
	RefundRequestRejected:  "Refund rejected",
	RefundRequestProcessed: "Refund processed",
}

// String implements fmt.Stringer.
func (s RefundRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RefundRequestStatus.
func (s RefundRequestStatus) IsValid() bool {
	for _, candidate := range validRefundRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether the request can no longer change.
func (s RefundRequestStatus) IsFinal() bool {
	return s == RefundRequestRejected || s == RefundRequestProcessed
}

// CanTransitionTo reports whether next is a legal one-directional move.
func (s RefundRequestStatus) CanTransitionTo(next RefundRequestStatus) bool {
	for _, candidate := range refundTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TimelineLabel returns the audit label recorded when entering the status.
func (s RefundRequestStatus) TimelineLabel() string {
	if label, ok := refundTimelineLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseRefundRequestStatus converts raw input into a RefundRequestStatus.
func ParseRefundRequestStatus(value string) (RefundRequestStatus, error) {
	for _, candidate := range validRefundRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund request status %q", value)
}

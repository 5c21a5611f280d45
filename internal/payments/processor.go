package payments

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// ChargeRequest is what a processor needs to open or run one attempt.
type ChargeRequest struct {
	Attempt        *models.PaymentAttempt
	SourceID       string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// ImmediateOutcome is reported by processors that charge synchronously.
type ImmediateOutcome struct {
	Succeeded bool
	Reason    enums.DeclineReason
	Code      string
	Message   string
}

// ChargeResult is the processor's acceptance of an attempt.
type ChargeResult struct {
	SessionID   string
	PaymentRef  string
	RedirectURL string
	Immediate   *ImmediateOutcome
}

// Processor opens payment attempts with an external provider.
type Processor interface {
	Provider() enums.PaymentProvider
	Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// VerificationStatus is what the provider says about an attempt right now.
type VerificationStatus string

const (
	VerificationPaid    VerificationStatus = "paid"
	VerificationFailed  VerificationStatus = "failed"
	VerificationPending VerificationStatus = "pending"
)

// Verification is the provider-side truth about one attempt.
type Verification struct {
	Status     VerificationStatus
	PaymentRef string
	Reason     enums.DeclineReason
	Code       string
}

// Verifier checks an attempt against the provider before it is trusted.
type Verifier interface {
	Verify(ctx context.Context, attempt *models.PaymentAttempt) (*Verification, error)
}

// Refunder sends money back for a captured payment.
type Refunder interface {
	Provider() enums.PaymentProvider
	Refund(ctx context.Context, paymentRef string, amountCents int64, currency enums.Currency, idempotencyKey string) (string, error)
}

// redirectURL appends the identifiers the storefront needs after the processor returns.
func redirectURL(base string, paymentID, orderID uuid.UUID, extra map[string]string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("paymentId", paymentID.String())
	q.Set("orderId", orderID.String())
	for k, v := range extra {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

// MaxAttempts is the number of failed attempts a purchase may accumulate.
const MaxAttempts = 3

// RetryStatus answers whether the customer may try paying again.
type RetryStatus struct {
	PaymentID         uuid.UUID `json:"paymentId"`
	PurchaseID        uuid.UUID `json:"purchaseId"`
	CanRetry          bool      `json:"canRetry"`
	RemainingAttempts int       `json:"remainingAttempts"`
	AttemptsUsed      int       `json:"attemptsUsed"`
	MaxAttempts       int       `json:"maxAttempts"`
	PurchaseCompleted bool      `json:"purchaseCompleted"`
}

// RetryPolicy derives the retry budget from the attempts of a purchase.
type RetryPolicy struct {
	repo        Repository
	maxAttempts int
	supportPath string
}

// NewRetryPolicy builds the policy. maxAttempts <= 0 falls back to MaxAttempts.
func NewRetryPolicy(repo Repository, maxAttempts int, supportPath string) (*RetryPolicy, error) {
	if repo == nil {
		return nil, errors.New("payments repository required")
	}
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	if supportPath == "" {
		supportPath = "/contact"
	}
	return &RetryPolicy{repo: repo, maxAttempts: maxAttempts, supportPath: supportPath}, nil
}

// MaxAttempts reports the configured budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Status reports the budget of the purchase the payment belongs to.
func (p *RetryPolicy) Status(ctx context.Context, paymentID uuid.UUID) (*RetryStatus, error) {
	attempt, err := p.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	status, err := p.forPurchase(ctx, p.repo, attempt.PurchaseID)
	if err != nil {
		return nil, err
	}
	status.PaymentID = paymentID
	return status, nil
}

// CanInitiate is the server-side budget enforcement run before a new attempt.
func (p *RetryPolicy) CanInitiate(ctx context.Context, purchaseID uuid.UUID) (*RetryStatus, error) {
	status, err := p.forPurchase(ctx, p.repo, purchaseID)
	if err != nil {
		return nil, err
	}
	if status.PurchaseCompleted {
		return status, pkgerrors.New(pkgerrors.CodeStateConflict, "this purchase has already been paid")
	}
	if status.RemainingAttempts == 0 {
		return status, pkgerrors.New(pkgerrors.CodeBudget, "payment attempts exhausted for this order").
			WithDetails(map[string]any{
				"supportPath":  p.supportPath,
				"attemptsUsed": status.AttemptsUsed,
				"maxAttempts":  status.MaxAttempts,
			})
	}
	return status, nil
}

func (p *RetryPolicy) forPurchase(ctx context.Context, repo Repository, purchaseID uuid.UUID) (*RetryStatus, error) {
	used, err := repo.CountBudgetConsuming(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payment attempts")
	}
	completed := true
	if _, err := repo.FindSucceededForPurchase(ctx, purchaseID, uuid.Nil); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase outcome")
		}
		completed = false
	}
	remaining := p.maxAttempts - used
	if remaining < 0 {
		remaining = 0
	}
	return &RetryStatus{
		PurchaseID:        purchaseID,
		CanRetry:          !completed && remaining > 0,
		RemainingAttempts: remaining,
		AttemptsUsed:      used,
		MaxAttempts:       p.maxAttempts,
		PurchaseCompleted: completed,
	}, nil
}

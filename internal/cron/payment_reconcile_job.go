package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

const (
	defaultReconcileAfter = 30 * time.Minute
	defaultReconcileLimit = 50
)

type staleAttemptReader interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
}

type outcomeRecorder interface {
	HandleSuccess(ctx context.Context, in payments.SuccessInput) (*payments.OutcomeResult, error)
	HandleFailure(ctx context.Context, in payments.FailureInput) (*payments.OutcomeResult, error)
}

// PaymentReconcileJobParams configure the pending-attempt reconciler.
type PaymentReconcileJobParams struct {
	Logger    *logger.Logger
	Attempts  staleAttemptReader
	Outcomes  outcomeRecorder
	Verifiers map[enums.PaymentProvider]payments.Verifier
	After     time.Duration
	Limit     int
}

// NewPaymentReconcileJob resolves attempts whose outcome signal never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempts reader required")
	}
	if params.Outcomes == nil {
		return nil, fmt.Errorf("outcome handler required")
	}
	if len(params.Verifiers) == 0 {
		return nil, fmt.Errorf("at least one verifier required")
	}
	after := params.After
	if after <= 0 {
		after = defaultReconcileAfter
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &paymentReconcileJob{
		logg:      params.Logger,
		attempts:  params.Attempts,
		outcomes:  params.Outcomes,
		verifiers: params.Verifiers,
		after:     after,
		limit:     limit,
		now:       time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg      *logger.Logger
	attempts  staleAttemptReader
	outcomes  outcomeRecorder
	verifiers map[enums.PaymentProvider]payments.Verifier
	after     time.Duration
	limit     int
	now       func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	stale, err := j.attempts.ListStalePending(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list stale payment attempts: %w", err)
	}

	var errs error
	resolved := 0
	for i := range stale {
		done, err := j.reconcile(ctx, &stale[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", stale[i].ID, err))
			continue
		}
		if done {
			resolved++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"resolved":   resolved,
		"cutoff":     cutoff,
	}), "payment reconcile loop complete")
	return errs
}

func (j *paymentReconcileJob) reconcile(ctx context.Context, attempt *models.PaymentAttempt) (bool, error) {
	logCtx := j.logg.WithPayment(ctx, attempt.ID.String(), attempt.PurchaseID.String())
	verifier, ok := j.verifiers[attempt.Provider]
	if !ok {
		j.logg.Warn(j.logg.WithField(logCtx, "provider", string(attempt.Provider)), "no verifier for provider; skipping")
		return false, nil
	}
	v, err := verifier.Verify(logCtx, attempt)
	if err != nil {
		return false, err
	}

	switch v.Status {
	case payments.VerificationPaid:
		_, err = j.outcomes.HandleSuccess(logCtx, payments.SuccessInput{
			PaymentID:  attempt.ID,
			Source:     payments.SourceReconcile,
			Verified:   true,
			PaymentRef: v.PaymentRef,
		})
		return err == nil, err
	case payments.VerificationFailed:
		// an abandoned attempt the customer already replaced is not charged to the budget
		if attempt.SupersededAt != nil {
			return false, nil
		}
		code := v.Code
		if code == "" {
			code = string(v.Reason)
		}
		_, err = j.outcomes.HandleFailure(logCtx, payments.FailureInput{
			PaymentID:  attempt.ID,
			Code:       code,
			Source:     payments.SourceReconcile,
			PaymentRef: v.PaymentRef,
		})
		return err == nil, err
	default:
		return false, nil
	}
}

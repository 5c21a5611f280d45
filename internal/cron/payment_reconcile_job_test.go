package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

type fakeStaleReader struct {
	attempts []models.PaymentAttempt
	cutoff   time.Time
	limit    int
}

func (f *fakeStaleReader) ListStalePending(_ context.Context, before time.Time, limit int) ([]models.PaymentAttempt, error) {
	f.cutoff = before
	f.limit = limit
	return f.attempts, nil
}

type fakeVerifier struct {
	byID map[uuid.UUID]*payments.Verification
	errs map[uuid.UUID]error
}

func (f *fakeVerifier) Verify(_ context.Context, attempt *models.PaymentAttempt) (*payments.Verification, error) {
	if err := f.errs[attempt.ID]; err != nil {
		return nil, err
	}
	if v, ok := f.byID[attempt.ID]; ok {
		return v, nil
	}
	return &payments.Verification{Status: payments.VerificationPending}, nil
}

type fakeOutcomes struct {
	successes []payments.SuccessInput
	failures  []payments.FailureInput
}

func (f *fakeOutcomes) HandleSuccess(_ context.Context, in payments.SuccessInput) (*payments.OutcomeResult, error) {
	f.successes = append(f.successes, in)
	return &payments.OutcomeResult{}, nil
}

func (f *fakeOutcomes) HandleFailure(_ context.Context, in payments.FailureInput) (*payments.OutcomeResult, error) {
	f.failures = append(f.failures, in)
	return &payments.OutcomeResult{}, nil
}

func TestPaymentReconcileResolvesStaleAttempts(t *testing.T) {
	now := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	superseded := now.Add(-time.Hour)
	paid := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderStripe}
	declined := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderStripe}
	abandoned := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderStripe, SupersededAt: &superseded}
	waiting := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderStripe}
	broken := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderStripe}
	square := models.PaymentAttempt{ID: uuid.New(), PurchaseID: uuid.New(), Provider: enums.PaymentProviderSquare}

	reader := &fakeStaleReader{attempts: []models.PaymentAttempt{paid, declined, abandoned, waiting, broken, square}}
	verifier := &fakeVerifier{
		byID: map[uuid.UUID]*payments.Verification{
			paid.ID:      {Status: payments.VerificationPaid, PaymentRef: "pi_paid"},
			declined.ID:  {Status: payments.VerificationFailed, Reason: enums.DeclineInsufficientFunds, Code: "insufficient_funds"},
			abandoned.ID: {Status: payments.VerificationFailed, Reason: enums.DeclineUserCancelled, Code: "session_expired"},
		},
		errs: map[uuid.UUID]error{broken.ID: errors.New("stripe unavailable")},
	}
	outcomes := &fakeOutcomes{}

	jobIface, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:    testLogger(),
		Attempts:  reader,
		Outcomes:  outcomes,
		Verifiers: map[enums.PaymentProvider]payments.Verifier{enums.PaymentProviderStripe: verifier},
		After:     30 * time.Minute,
		Limit:     10,
	})
	require.NoError(t, err)
	job := jobIface.(*paymentReconcileJob)
	job.now = func() time.Time { return now }

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID.String())

	assert.Equal(t, now.Add(-30*time.Minute), reader.cutoff)
	assert.Equal(t, 10, reader.limit)

	require.Len(t, outcomes.successes, 1)
	assert.Equal(t, paid.ID, outcomes.successes[0].PaymentID)
	assert.True(t, outcomes.successes[0].Verified)
	assert.Equal(t, payments.SourceReconcile, outcomes.successes[0].Source)
	assert.Equal(t, "pi_paid", outcomes.successes[0].PaymentRef)

	require.Len(t, outcomes.failures, 1)
	assert.Equal(t, declined.ID, outcomes.failures[0].PaymentID)
	assert.Equal(t, "insufficient_funds", outcomes.failures[0].Code)
}

func TestPaymentReconcileRequiresVerifier(t *testing.T) {
	_, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:   testLogger(),
		Attempts: &fakeStaleReader{},
		Outcomes: &fakeOutcomes{},
	})
	assert.Error(t, err)
}

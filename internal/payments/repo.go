package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// Resolution is the terminal data written onto an attempt. From is the
// outcome the attempt must still hold; empty means pending.
type Resolution struct {
	From               enums.PaymentOutcome
	Outcome            enums.PaymentOutcome
	DeclineReason      *enums.DeclineReason
	DeclineCode        *string
	DeclineMessage     *string
	ProviderPaymentRef *string
	ResolvedAt         time.Time
}

// Repository persists payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByProviderSession(ctx context.Context, sessionID string) (*models.PaymentAttempt, error)
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.PaymentAttempt, error)
	CountBudgetConsuming(ctx context.Context, purchaseID uuid.UUID) (int, error)
	FindSucceededForPurchase(ctx context.Context, purchaseID uuid.UUID, excludeID uuid.UUID) (*models.PaymentAttempt, error)
	NextSequence(ctx context.Context, purchaseID uuid.UUID) (int, error)
	SupersedePending(ctx context.Context, purchaseID uuid.UUID, at time.Time) error
	Resolve(ctx context.Context, id uuid.UUID, res Resolution) (int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the attempts repository to a DB handle.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindByProviderSession(ctx context.Context, sessionID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("provider_session_id = ?", sessionID).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("sequence ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *repository) CountBudgetConsuming(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("purchase_id = ? AND outcome IN ?", purchaseID, enums.BudgetConsumingOutcomes).
		Count(&count).Error
	return int(count), err
}

func (r *repository) FindSucceededForPurchase(ctx context.Context, purchaseID uuid.UUID, excludeID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("purchase_id = ? AND outcome = ? AND id <> ?", purchaseID, enums.PaymentOutcomeSucceeded, excludeID).
		Order("resolved_at ASC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) NextSequence(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("purchase_id = ?", purchaseID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// SupersedePending stamps every still-pending attempt of the purchase. The
// outcome stays pending so a late processor signal can still resolve it.
func (r *repository) SupersedePending(ctx context.Context, purchaseID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("purchase_id = ? AND outcome = ? AND superseded_at IS NULL", purchaseID, enums.PaymentOutcomePending).
		Updates(map[string]any{"superseded_at": at, "updated_at": at}).Error
}

// Resolve moves an attempt from res.From to its outcome. Zero rows affected
// means another signal resolved it first.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, res Resolution) (int64, error) {
	from := res.From
	if from == "" {
		from = enums.PaymentOutcomePending
	}
	updates := map[string]any{
		"outcome":     res.Outcome,
		"resolved_at": res.ResolvedAt,
		"updated_at":  res.ResolvedAt,
	}
	if res.DeclineReason != nil {
		updates["decline_reason"] = *res.DeclineReason
	}
	if res.DeclineCode != nil {
		updates["decline_code"] = *res.DeclineCode
	}
	if res.DeclineMessage != nil {
		updates["decline_message"] = *res.DeclineMessage
	}
	if res.ProviderPaymentRef != nil {
		updates["provider_payment_ref"] = *res.ProviderPaymentRef
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND outcome = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("outcome = ? AND created_at < ?", enums.PaymentOutcomePending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

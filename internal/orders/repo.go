package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// Repository is the persistence surface for placed orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListBySessionHash(ctx context.Context, sessionHash string, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, to enums.OrderStatus, eta *time.Time) (int64, error)
	UpdateRefund(ctx context.Context, id uuid.UUID, refundedCents int64, status enums.RefundStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListBySessionHash(ctx context.Context, sessionHash string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("cart_session_hash = ?", sessionHash).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// UpdateStatus applies the transition only when the version still matches and
// returns the affected row count.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, to enums.OrderStatus, eta *time.Time) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	if eta != nil {
		updates["estimated_delivery_at"] = *eta
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateRefund(ctx context.Context, id uuid.UUID, refundedCents int64, status enums.RefundStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"refunded_cents": refundedCents,
			"refund_status":  status,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
}

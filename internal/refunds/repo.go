package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/angelmondragon/ordering-backend/pkg/pagination"
)

// Repository persists refund requests and their timeline.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.RefundRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	List(ctx context.Context, params listParams) ([]models.RefundRequest, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, updates statusUpdate) (int64, error)
	AppendTimeline(ctx context.Context, entry *models.RefundTimelineEntry) error
}

type listParams struct {
	OrderID *uuid.UUID
	Status  *enums.RefundRequestStatus
	Limit   int
	Cursor  *pagination.Cursor
}

type statusUpdate struct {
	Status            enums.RefundRequestStatus
	DecidedBy         *uuid.UUID
	ProcessorRefundID *string
	Note              *string
	At                time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a refunds repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.RefundRequest) error {
	return r.db.WithContext(ctx).Omit("Timeline").Create(refund).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var refund models.RefundRequest
	err := r.db.WithContext(ctx).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at ASC") }).
		Where("id = ?", id).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// LockByID takes the row lock first, then loads the refund with its timeline.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var locked models.RefundRequest
	if err := db.ForUpdate(r.db.WithContext(ctx)).Select("id").Where("id = ?", id).First(&locked).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.RefundRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.RefundRequest{})
	if params.OrderID != nil {
		query = query.Where("order_id = ?", *params.OrderID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var refunds []models.RefundRequest
	if err := query.Scopes(pagination.Scope(params.Cursor, params.Limit)).Find(&refunds).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(refunds, params.Limit, func(r models.RefundRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return page, next, nil
}

// UpdateStatus applies the transition only while the version matches.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, u statusUpdate) (int64, error) {
	updates := map[string]any{
		"status":     u.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": u.At,
	}
	switch u.Status {
	case enums.RefundRequestApproved:
		updates["approved_at"] = u.At
	case enums.RefundRequestRejected:
		updates["rejected_at"] = u.At
	case enums.RefundRequestProcessed:
		updates["processed_at"] = u.At
	}
	if u.DecidedBy != nil {
		updates["decided_by"] = *u.DecidedBy
	}
	if u.ProcessorRefundID != nil {
		updates["processor_refund_id"] = *u.ProcessorRefundID
	}
	if u.Note != nil {
		updates["note"] = *u.Note
	}
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AppendTimeline(ctx context.Context, entry *models.RefundTimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

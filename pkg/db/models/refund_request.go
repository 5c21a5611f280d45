package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// RefundRequest is an admin-initiated compensation against an order.
type RefundRequest struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents       int64                     `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency            `gorm:"column:currency;not null"`
	Reason            enums.RefundReason        `gorm:"column:reason;not null"`
	Note              *string                   `gorm:"column:note"`
	Evidence          dbtypes.TextArray         `gorm:"column:evidence;not null"`
	Partial           bool                      `gorm:"column:partial;not null"`
	Status            enums.RefundRequestStatus `gorm:"column:status;not null;default:'requested'"`
	ProcessorRefundID *string                   `gorm:"column:processor_refund_id"`
	CreatedBy         uuid.UUID                 `gorm:"column:created_by;type:uuid;not null"`
	DecidedBy         *uuid.UUID                `gorm:"column:decided_by;type:uuid"`
	Version           int                       `gorm:"column:version;not null;default:1"`
	ApprovedAt        *time.Time                `gorm:"column:approved_at"`
	RejectedAt        *time.Time                `gorm:"column:rejected_at"`
	ProcessedAt       *time.Time                `gorm:"column:processed_at"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`

	Timeline []RefundTimelineEntry `gorm:"foreignKey:RefundID"`
}

func (r *RefundRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Evidence == nil {
		r.Evidence = dbtypes.TextArray{}
	}
	return nil
}

// RefundTimelineEntry is an immutable audit record of a refund transition.
type RefundTimelineEntry struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	RefundID   uuid.UUID                 `gorm:"column:refund_id;type:uuid;not null;index"`
	Status     enums.RefundRequestStatus `gorm:"column:status;not null"`
	Label      string                    `gorm:"column:label;not null"`
	ActorID    *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	Note       *string                   `gorm:"column:note"`
	OccurredAt time.Time                 `gorm:"column:occurred_at;not null"`
}

func (e *RefundTimelineEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

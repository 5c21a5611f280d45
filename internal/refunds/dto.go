package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

// TimelineEntry is one audit row of a refund.
type TimelineEntry struct {
	Status     enums.RefundRequestStatus `json:"status"`
	Label      string                    `json:"label"`
	ActorID    *uuid.UUID                `json:"actorId,omitempty"`
	Note       *string                   `json:"note,omitempty"`
	OccurredAt time.Time                 `json:"occurredAt"`
}

// RefundView is the admin representation of a refund request.
type RefundView struct {
	ID                uuid.UUID                 `json:"refundId"`
	OrderID           uuid.UUID                 `json:"orderId"`
	AmountCents       int64                     `json:"amountCents"`
	Amount            string                    `json:"amount"`
	Currency          enums.Currency            `json:"currency"`
	Reason            enums.RefundReason        `json:"reason"`
	Note              *string                   `json:"note,omitempty"`
	Evidence          []string                  `json:"evidence"`
	Partial           bool                      `json:"partial"`
	Status            enums.RefundRequestStatus `json:"status"`
	ProcessorRefundID *string                   `json:"processorRefundId,omitempty"`
	CreatedBy         uuid.UUID                 `json:"createdBy"`
	DecidedBy         *uuid.UUID                `json:"decidedBy,omitempty"`
	Version           int                       `json:"version"`
	CreatedAt         time.Time                 `json:"createdAt"`
	Timeline          []TimelineEntry           `json:"timeline,omitempty"`
}

// ListResult is one page of refunds.
type ListResult struct {
	Refunds    []RefundView `json:"refunds"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

func newRefundView(r models.RefundRequest) RefundView {
	evidence := []string(r.Evidence)
	if evidence == nil {
		evidence = []string{}
	}
	view := RefundView{
		ID:                r.ID,
		OrderID:           r.OrderID,
		AmountCents:       r.AmountCents,
		Amount:            orders.FormatAmount(r.AmountCents),
		Currency:          r.Currency,
		Reason:            r.Reason,
		Note:              r.Note,
		Evidence:          evidence,
		Partial:           r.Partial,
		Status:            r.Status,
		ProcessorRefundID: r.ProcessorRefundID,
		CreatedBy:         r.CreatedBy,
		DecidedBy:         r.DecidedBy,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
	}
	for _, e := range r.Timeline {
		view.Timeline = append(view.Timeline, TimelineEntry{
			Status:     e.Status,
			Label:      e.Label,
			ActorID:    e.ActorID,
			Note:       e.Note,
			OccurredAt: e.OccurredAt,
		})
	}
	return view
}

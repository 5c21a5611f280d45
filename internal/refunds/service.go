package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/metrics"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordering-backend/pkg/pagination"
)

const maxEvidence = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Issuer sends money back through the processor that captured the order.
type Issuer interface {
	IssueRefund(ctx context.Context, order models.Order, amountCents int64, idempotencyKey string) (string, error)
}

// Actor is the admin performing a refund action.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// CreateInput opens a refund request against an order.
type CreateInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Reason      enums.RefundReason
	Evidence    []string
	// Partial is optional; when set it must agree with the amount.
	Partial *bool
	Note    string
	Actor   Actor
}

// DecisionInput carries the version the admin last saw.
type DecisionInput struct {
	RefundID        uuid.UUID
	ExpectedVersion int
	Note            string
	Actor           Actor
}

// ListFilter narrows the admin refund list.
type ListFilter struct {
	OrderID *uuid.UUID
	Status  *enums.RefundRequestStatus
	Limit   int
	Cursor  string
}

// Service coordinates refund requests.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*RefundView, error)
	Approve(ctx context.Context, input DecisionInput) (*RefundView, error)
	Reject(ctx context.Context, input DecisionInput) (*RefundView, error)
	MarkProcessed(ctx context.Context, input DecisionInput) (*RefundView, error)
	Get(ctx context.Context, id uuid.UUID) (*RefundView, error)
	List(ctx context.Context, filter ListFilter) (*ListResult, error)
}

// ServiceParams wires the coordinator. Issuer and Metrics are optional.
type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Issuer  Issuer
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	issuer  Issuer
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the refund coordinator.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    p.Repo,
		orders:  p.Orders,
		tx:      p.Tx,
		outbox:  p.Outbox,
		issuer:  p.Issuer,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*RefundView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund reason")
	}
	evidence, err := normalizeEvidence(input.Evidence)
	if err != nil {
		return nil, err
	}
	if input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity required")
	}

	var created models.RefundRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, s.orders.WithTx(tx), input.OrderID)
		if err != nil {
			return err
		}
		remaining := order.RefundableCents()
		if input.AmountCents > remaining {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the refundable remainder").
				WithDetails(map[string]any{"refundableCents": remaining, "refundedCents": order.RefundedCents})
		}
		partial := input.AmountCents < order.TotalCents
		if input.Partial != nil && *input.Partial != partial {
			return pkgerrors.New(pkgerrors.CodeValidation, "partial flag does not match the refund amount")
		}

		now := s.now()
		refund := models.RefundRequest{
			ID:          uuid.New(),
			OrderID:     order.ID,
			AmountCents: input.AmountCents,
			Currency:    order.Currency,
			Reason:      input.Reason,
			Note:        optionalString(input.Note),
			Evidence:    dbtypes.TextArray(evidence),
			Partial:     partial,
			Status:      enums.RefundRequestRequested,
			CreatedBy:   input.Actor.ID,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
		}
		entry, err := s.appendTimeline(ctx, repo, refund.ID, refund.Status, input.Actor, input.Note, now)
		if err != nil {
			return err
		}
		refund.Timeline = []models.RefundTimelineEntry{*entry}
		if err := s.emit(ctx, tx, refund, *order, input.Actor, now); err != nil {
			return err
		}
		created = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRefundTransition(string(enums.RefundRequestRequested))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": created.ID.String(),
		"order_id":  created.OrderID.String(),
		"amount":    created.AmountCents,
	}), "refund requested")
	view := newRefundView(created)
	return &view, nil
}

func (s *service) Approve(ctx context.Context, input DecisionInput) (*RefundView, error) {
	return s.transition(ctx, input, enums.RefundRequestApproved, nil)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*RefundView, error) {
	return s.transition(ctx, input, enums.RefundRequestRejected, nil)
}

// MarkProcessed settles the refund against the order under a row lock.
func (s *service) MarkProcessed(ctx context.Context, input DecisionInput) (*RefundView, error) {
	return s.transition(ctx, input, enums.RefundRequestProcessed, s.settle)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RefundView, error) {
	refund, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	view := newRefundView(*refund)
	return &view, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund status filter")
	}
	rows, next, err := s.repo.List(ctx, listParams{
		OrderID: filter.OrderID,
		Status:  filter.Status,
		Limit:   filter.Limit,
		Cursor:  cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	result := &ListResult{Refunds: make([]RefundView, 0, len(rows))}
	for _, row := range rows {
		result.Refunds = append(result.Refunds, newRefundView(row))
	}
	if next != nil {
		result.NextCursor = next.Encode()
	}
	return result, nil
}

// settleFunc runs inside the transition transaction before the status update.
type settleFunc func(ctx context.Context, tx *gorm.DB, refund *models.RefundRequest, update *statusUpdate) (*models.Order, error)

func (s *service) transition(ctx context.Context, input DecisionInput, to enums.RefundRequestStatus, settle settleFunc) (*RefundView, error) {
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if input.ExpectedVersion < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "version is required")
	}
	if input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity required")
	}

	var result models.RefundRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// held until commit so no concurrent edit can land after money moved
		refund, err := s.lock(ctx, repo, input.RefundID)
		if err != nil {
			return err
		}
		if refund.Version != input.ExpectedVersion {
			return pkgerrors.New(pkgerrors.CodeConflict, "refund was modified concurrently").
				WithDetails(map[string]any{"currentVersion": refund.Version})
		}
		if !refund.Status.CanTransitionTo(to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("refund cannot move from %s to %s", refund.Status, to))
		}

		now := s.now()
		actorID := input.Actor.ID
		update := statusUpdate{Status: to, DecidedBy: &actorID, At: now}
		if to == enums.RefundRequestRejected && strings.TrimSpace(input.Note) != "" {
			update.Note = optionalString(input.Note)
		}

		var order *models.Order
		if settle != nil {
			if order, err = settle(ctx, tx, refund, &update); err != nil {
				return err
			}
		} else if order, err = s.loadOrder(ctx, s.orders.WithTx(tx), refund.OrderID); err != nil {
			return err
		}

		affected, err := repo.UpdateStatus(ctx, refund.ID, refund.Version, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "refund was modified concurrently")
		}
		entry, err := s.appendTimeline(ctx, repo, refund.ID, to, input.Actor, input.Note, now)
		if err != nil {
			return err
		}

		refund.Status = to
		refund.Version++
		refund.DecidedBy = &actorID
		refund.UpdatedAt = now
		if update.ProcessorRefundID != nil {
			refund.ProcessorRefundID = update.ProcessorRefundID
		}
		if update.Note != nil {
			refund.Note = update.Note
		}
		switch to {
		case enums.RefundRequestApproved:
			refund.ApprovedAt = &now
		case enums.RefundRequestRejected:
			refund.RejectedAt = &now
		case enums.RefundRequestProcessed:
			refund.ProcessedAt = &now
		}
		refund.Timeline = append(refund.Timeline, *entry)

		if err := s.emit(ctx, tx, *refund, *order, input.Actor, now); err != nil {
			return err
		}
		result = *refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRefundTransition(string(to))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": result.ID.String(),
		"order_id":  result.OrderID.String(),
		"status":    string(to),
	}), "refund status changed")
	view := newRefundView(result)
	return &view, nil
}

// settle rechecks the remainder on the locked order and records the refund on it.
func (s *service) settle(ctx context.Context, tx *gorm.DB, refund *models.RefundRequest, update *statusUpdate) (*models.Order, error) {
	orderRepo := s.orders.WithTx(tx)
	order, err := orderRepo.LockByID(ctx, refund.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	remaining := order.RefundableCents()
	if refund.AmountCents > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund amount exceeds the refundable remainder").
			WithDetails(map[string]any{"refundableCents": remaining, "refundedCents": order.RefundedCents})
	}

	if s.issuer != nil {
		processorID, err := s.issuer.IssueRefund(ctx, *order, refund.AmountCents, "refund-"+refund.ID.String())
		if err != nil {
			return nil, err
		}
		update.ProcessorRefundID = &processorID
	}

	refunded := order.RefundedCents + refund.AmountCents
	status := enums.RefundStatusFor(refunded, order.TotalCents)
	if err := orderRepo.UpdateRefund(ctx, order.ID, refunded, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order refund totals")
	}
	order.RefundedCents = refunded
	order.RefundStatus = status
	order.Version++
	return order, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.RefundRequest, error) {
	refund, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	return refund, nil
}

func (s *service) lock(ctx context.Context, repo Repository, id uuid.UUID) (*models.RefundRequest, error) {
	refund, err := repo.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock refund")
	}
	return refund, nil
}

func (s *service) loadOrder(ctx context.Context, repo orders.Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) appendTimeline(ctx context.Context, repo Repository, refundID uuid.UUID, status enums.RefundRequestStatus, actor Actor, note string, at time.Time) (*models.RefundTimelineEntry, error) {
	actorID := actor.ID
	entry := &models.RefundTimelineEntry{
		ID:         uuid.New(),
		RefundID:   refundID,
		Status:     status,
		Label:      status.TimelineLabel(),
		ActorID:    &actorID,
		Note:       optionalString(note),
		OccurredAt: at,
	}
	if err := repo.AppendTimeline(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append refund timeline")
	}
	return entry, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, refund models.RefundRequest, order models.Order, actor Actor, at time.Time) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventRefundStatusChanged,
		AggregateType: enums.AggregateRefundRequest,
		AggregateID:   refund.ID,
		OccurredAt:    at,
		Data: payloads.RefundStatusChangedEvent{
			RefundID:      refund.ID,
			OrderID:       refund.OrderID,
			Status:        refund.Status,
			AmountCents:   refund.AmountCents,
			Currency:      refund.Currency,
			Partial:       refund.Partial,
			OrderRefund:   order.RefundStatus,
			RefundedCents: order.RefundedCents,
		},
	}
	if actor.ID != uuid.Nil {
		event.Actor = &outbox.ActorRef{ActorID: actor.ID, Role: actor.Role}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit refund event")
	}
	return nil
}

func normalizeEvidence(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) > maxEvidence {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d evidence references are allowed", maxEvidence))
	}
	return out, nil
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/payloads"
)

const (
	defaultListLimit = 20
	// sharedLoadTimeout bounds a collapsed read that no longer follows any
	// single caller's context.
	sharedLoadTimeout = 10 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the staff member advancing an order.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// AdvanceInput moves an order one step along its lifecycle.
type AdvanceInput struct {
	OrderID         uuid.UUID
	To              enums.OrderStatus
	ExpectedVersion int
	Actor           Actor
}

// Service is the order status tracker.
type Service interface {
	// Get returns the order owned by the cart session.
	Get(ctx context.Context, orderID uuid.UUID, sessionHash string) (*OrderView, error)
	// GetForAdmin returns any order.
	GetForAdmin(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	ListForSession(ctx context.Context, sessionHash string) ([]OrderSummary, error)
	AdvanceStatus(ctx context.Context, input AdvanceInput) (*OrderView, error)
}

// Options tunes the tracker.
type Options struct {
	OrdersPath        string
	EstimatedPrepTime time.Duration
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	opts   Options
	group  singleflight.Group
	now    func() time.Time
}

// NewService builds the tracker.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.OrdersPath == "" {
		opts.OrdersPath = "/orders"
	}
	if opts.EstimatedPrepTime <= 0 {
		opts.EstimatedPrepTime = 45 * time.Minute
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, sessionHash string) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// another session's order is reported as missing
	if sessionHash == "" || order.CartSessionHash != sessionHash {
		return nil, s.notFound()
	}
	view := NewOrderView(*order)
	return &view, nil
}

func (s *service) GetForAdmin(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	view := NewOrderView(*order)
	return &view, nil
}

// load collapses concurrent reads of the same order into one query. The
// query outlives a caller that gives up, so the others still get their answer.
func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, s.notFound()
	}
	ch := s.group.DoChan(orderID.String(), func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		order, err := s.repo.FindByID(qctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, s.notFound()
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		return order, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "load order")
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	// callers sharing the result must not see each other's edits
	copied := *res.Val.(*models.Order)
	return &copied, nil
}

func (s *service) ListForSession(ctx context.Context, sessionHash string) ([]OrderSummary, error) {
	if sessionHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required")
	}
	rows, err := s.repo.ListBySessionHash(ctx, sessionHash, defaultListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewOrderSummary(row))
	}
	return out, nil
}

func (s *service) AdvanceStatus(ctx context.Context, input AdvanceInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.ExpectedVersion < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "version is required")
	}

	var result models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return s.notFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Version != input.ExpectedVersion {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently").
				WithDetails(map[string]any{"currentVersion": order.Version})
		}
		if !order.Status.CanTransitionTo(input.To) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", order.Status, input.To))
		}

		now := s.now()
		var eta *time.Time
		if input.To == enums.OrderStatusConfirmed {
			at := now.Add(s.opts.EstimatedPrepTime)
			eta = &at
		}
		affected, err := repo.UpdateStatus(ctx, order.ID, order.Version, input.To, eta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor),
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        order.Status,
				To:          input.To,
				ChangedAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}

		order.Status = input.To
		order.Version++
		if eta != nil {
			order.EstimatedDeliveryAt = eta
		}
		result = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := NewOrderView(result)
	return &view, nil
}

func (s *service) notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]string{"ordersPath": s.opts.OrdersPath})
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.ID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{ActorID: actor.ID, Role: actor.Role}
}

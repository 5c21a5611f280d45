package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/payloads"
)

var fixedNow = time.Date(2026, 9, 1, 18, 30, 0, 0, time.UTC)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return assert.AnError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newTracker(t *testing.T) (*service, *gorm.DB, *recordingEmitter) {
	t.Helper()
	conn := dbtest.Open(t)
	emitter := &recordingEmitter{}
	svc, err := NewService(NewRepository(conn), db.NewFromGorm(conn), emitter, Options{
		OrdersPath:        "/orders",
		EstimatedPrepTime: 40 * time.Minute,
	})
	require.NoError(t, err)
	s := svc.(*service)
	s.now = func() time.Time { return fixedNow }
	return s, conn, emitter
}

func seedOrder(t *testing.T, conn *gorm.DB, sessionHash string) models.Order {
	t.Helper()
	number, err := NewOrderNumber(fixedNow)
	require.NoError(t, err)
	order := models.Order{
		ID:               uuid.New(),
		OrderNumber:      number,
		PurchaseID:       uuid.New(),
		PaymentAttemptID: uuid.New(),
		CartSessionHash:  sessionHash,
		Items: dbtypes.NewJSON([]models.OrderItem{
			{DishID: "pizza", Name: "Pizza", Quantity: 2, UnitPriceCents: 1000, LineTotalCents: 2000},
		}),
		DeliveryAddress: dbtypes.NewJSON(models.DeliveryAddress{Line1: "1 Main St", City: "Lisbon", PostalCode: "1000-001", Country: "PT"}),
		Customer:        dbtypes.NewJSON(models.CustomerInfo{Name: "Ana", Email: "ana@example.test"}),
		SubtotalCents:   2000,
		TotalCents:      2000,
		Currency:        enums.CurrencyEUR,
		Status:          enums.OrderStatusPending,
		RefundStatus:    enums.RefundStatusNone,
		Provider:        enums.PaymentProviderStripe,
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), &order))
	return order
}

func TestGetReturnsViewForOwningSession(t *testing.T) {
	svc, conn, _ := newTracker(t)
	order := seedOrder(t, conn, "session-a")

	view, err := svc.Get(context.Background(), order.ID, "session-a")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, view.OrderNumber)
	assert.Equal(t, "Order received", view.StatusLabel)
	assert.Equal(t, "20.00", view.Total)
	assert.Equal(t, "10.00", view.Items[0].UnitPrice)
	assert.Equal(t, enums.RefundStatusNone, view.RefundStatus)
}

func TestGetUnknownOrderCarriesOrdersPath(t *testing.T) {
	svc, _, _ := newTracker(t)

	_, err := svc.Get(context.Background(), uuid.New(), "session-a")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"ordersPath": "/orders"}, typed.Details())
}

func TestGetOtherSessionIsNotFound(t *testing.T) {
	svc, conn, _ := newTracker(t)
	order := seedOrder(t, conn, "session-a")

	_, err := svc.Get(context.Background(), order.ID, "session-b")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	view, err := svc.GetForAdmin(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, view.ID)
}

type gatedRepo struct {
	Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Repository.FindByID(ctx, id)
}

func TestCancelledReaderDoesNotFailSharedLoad(t *testing.T) {
	svc, conn, _ := newTracker(t)
	order := seedOrder(t, conn, "session-a")
	gate := &gatedRepo{Repository: svc.repo, entered: make(chan struct{}), release: make(chan struct{})}
	svc.repo = gate

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetForAdmin(firstCtx, order.ID)
		firstErr <- err
	}()
	<-gate.entered

	type result struct {
		view *OrderView
		err  error
	}
	second := make(chan result, 1)
	go func() {
		view, err := svc.GetForAdmin(context.Background(), order.ID)
		second <- result{view, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	close(gate.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, order.OrderNumber, got.view.OrderNumber)
}

func TestListForSession(t *testing.T) {
	svc, conn, _ := newTracker(t)
	seedOrder(t, conn, "session-a")
	seedOrder(t, conn, "session-a")
	seedOrder(t, conn, "session-b")

	list, err := svc.ListForSession(context.Background(), "session-a")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, list[0].ItemCount)

	_, err = svc.ListForSession(context.Background(), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestAdvanceStatusConfirmSetsETAAndEmits(t *testing.T) {
	svc, conn, emitter := newTracker(t)
	order := seedOrder(t, conn, "session-a")
	actor := Actor{ID: uuid.New(), Role: "admin"}

	view, err := svc.AdvanceStatus(context.Background(), AdvanceInput{
		OrderID: order.ID, To: enums.OrderStatusConfirmed, ExpectedVersion: 1, Actor: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, view.Status)
	assert.Equal(t, 2, view.Version)
	require.NotNil(t, view.EstimatedDeliveryAt)
	assert.True(t, view.EstimatedDeliveryAt.Equal(fixedNow.Add(40*time.Minute)))

	stored, err := NewRepository(conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, 2, stored.Version)

	require.Len(t, emitter.events, 1)
	ev := emitter.events[0]
	assert.Equal(t, enums.EventOrderStatusChanged, ev.EventType)
	assert.Equal(t, actor.ID, ev.Actor.ActorID)
	data := ev.Data.(payloads.OrderStatusChangedEvent)
	assert.Equal(t, enums.OrderStatusPending, data.From)
	assert.Equal(t, enums.OrderStatusConfirmed, data.To)
}

func TestAdvanceStatusRejectsStaleVersion(t *testing.T) {
	svc, conn, emitter := newTracker(t)
	order := seedOrder(t, conn, "session-a")

	_, err := svc.AdvanceStatus(context.Background(), AdvanceInput{
		OrderID: order.ID, To: enums.OrderStatusConfirmed, ExpectedVersion: 4,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Empty(t, emitter.events)
}

func TestAdvanceStatusEnforcesGraph(t *testing.T) {
	svc, conn, _ := newTracker(t)
	order := seedOrder(t, conn, "session-a")
	ctx := context.Background()

	_, err := svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusDelivered, ExpectedVersion: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	view, err := svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusCancelled, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Nil(t, view.EstimatedDeliveryAt)

	_, err = svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusConfirmed, ExpectedVersion: 2})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestAdvanceStatusUnknownOrder(t *testing.T) {
	svc, _, _ := newTracker(t)
	_, err := svc.AdvanceStatus(context.Background(), AdvanceInput{OrderID: uuid.New(), To: enums.OrderStatusConfirmed, ExpectedVersion: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, Options{})
	assert.Error(t, err)
}

package refunds

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordering-backend/internal/orders"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordering-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/ordering-backend/pkg/db/types"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/outbox"
	"github.com/angelmondragon/ordering-backend/pkg/outbox/payloads"
)

var fixedNow = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)

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

type stubIssuer struct {
	calls  []int64
	keys   []string
	err    error
	before func()
}

func (s *stubIssuer) IssueRefund(_ context.Context, _ models.Order, amountCents int64, key string) (string, error) {
	if s.before != nil {
		s.before()
	}
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, amountCents)
	s.keys = append(s.keys, key)
	return "re_" + key, nil
}

type fixture struct {
	svc     *service
	conn    *gorm.DB
	emitter *recordingEmitter
	issuer  *stubIssuer
	admin   Actor
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:    conn,
		emitter: &recordingEmitter{},
		issuer:  &stubIssuer{},
		admin:   Actor{ID: uuid.New(), Role: "admin"},
		clock:   fixedNow,
	}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Orders: orders.NewRepository(conn),
		Tx:     db.NewFromGorm(conn),
		Outbox: f.emitter,
		Issuer: f.issuer,
		Logger: logger.New(logger.Options{ServiceName: "refunds-test", Level: zerolog.Disabled, Output: io.Discard}),
	})
	require.NoError(t, err)
	f.svc = svc.(*service)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func (f *fixture) seedOrder(t *testing.T, totalCents int64) models.Order {
	t.Helper()
	number, err := orders.NewOrderNumber(fixedNow)
	require.NoError(t, err)
	ref := "pi_" + uuid.NewString()
	order := models.Order{
		ID:               uuid.New(),
		OrderNumber:      number,
		PurchaseID:       uuid.New(),
		PaymentAttemptID: uuid.New(),
		CartSessionHash:  "hash",
		Items: dbtypes.NewJSON([]models.OrderItem{
			{DishID: "menu", Name: "Tasting menu", Quantity: 1, UnitPriceCents: totalCents, LineTotalCents: totalCents},
		}),
		DeliveryAddress:    dbtypes.NewJSON(models.DeliveryAddress{Line1: "1 Main St", City: "Lisbon", PostalCode: "1000-001", Country: "PT"}),
		Customer:           dbtypes.NewJSON(models.CustomerInfo{Name: "Ana", Email: "ana@example.test"}),
		SubtotalCents:      totalCents,
		TotalCents:         totalCents,
		Currency:           enums.CurrencyEUR,
		Status:             enums.OrderStatusDelivered,
		RefundStatus:       enums.RefundStatusNone,
		Provider:           enums.PaymentProviderStripe,
		ProviderPaymentRef: &ref,
	}
	require.NoError(t, orders.NewRepository(f.conn).Create(context.Background(), &order))
	return order
}

func (f *fixture) create(t *testing.T, orderID uuid.UUID, amount int64) *RefundView {
	t.Helper()
	view, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:     orderID,
		AmountCents: amount,
		Reason:      enums.RefundReasonQualityIssue,
		Evidence:    []string{"uploads/photo-1.jpg", "  "},
		Actor:       f.admin,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) process(t *testing.T, view *RefundView) *RefundView {
	t.Helper()
	approved, err := f.svc.Approve(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: view.Version, Actor: f.admin})
	require.NoError(t, err)
	processed, err := f.svc.MarkProcessed(context.Background(), DecisionInput{RefundID: approved.ID, ExpectedVersion: approved.Version, Actor: f.admin})
	require.NoError(t, err)
	return processed
}

func TestPartialRefundThenOverdrawIsRejected(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000)

	first := f.create(t, order.ID, 3000)
	assert.True(t, first.Partial)
	assert.Equal(t, enums.RefundRequestRequested, first.Status)
	assert.Equal(t, []string{"uploads/photo-1.jpg"}, first.Evidence)

	processed := f.process(t, first)
	assert.Equal(t, enums.RefundRequestProcessed, processed.Status)
	require.NotNil(t, processed.ProcessorRefundID)
	assert.Equal(t, "re_refund-"+first.ID.String(), *processed.ProcessorRefundID)
	assert.Equal(t, []int64{3000}, f.issuer.calls)

	stored, err := orders.NewRepository(f.conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stored.RefundedCents)
	assert.Equal(t, enums.RefundStatusPartial, stored.RefundStatus)

	_, err = f.svc.Create(context.Background(), CreateInput{
		OrderID:     order.ID,
		AmountCents: 2500,
		Reason:      enums.RefundReasonOther,
		Actor:       f.admin,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rest := f.create(t, order.ID, 2000)
	f.process(t, rest)
	stored, err = orders.NewRepository(f.conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stored.RefundedCents)
	assert.Equal(t, enums.RefundStatusFull, stored.RefundStatus)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000)
	yes, no := true, false

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"zero amount", CreateInput{OrderID: order.ID, AmountCents: 0, Reason: enums.RefundReasonOther, Actor: f.admin}, pkgerrors.CodeValidation},
		{"over total", CreateInput{OrderID: order.ID, AmountCents: 5001, Reason: enums.RefundReasonOther, Actor: f.admin}, pkgerrors.CodeValidation},
		{"bad reason", CreateInput{OrderID: order.ID, AmountCents: 100, Reason: "because", Actor: f.admin}, pkgerrors.CodeValidation},
		{"partial flag disagrees", CreateInput{OrderID: order.ID, AmountCents: 5000, Reason: enums.RefundReasonOther, Partial: &yes, Actor: f.admin}, pkgerrors.CodeValidation},
		{"full flagged partial=false on partial amount", CreateInput{OrderID: order.ID, AmountCents: 100, Reason: enums.RefundReasonOther, Partial: &no, Actor: f.admin}, pkgerrors.CodeValidation},
		{"unknown order", CreateInput{OrderID: uuid.New(), AmountCents: 100, Reason: enums.RefundReasonOther, Actor: f.admin}, pkgerrors.CodeNotFound},
		{"no actor", CreateInput{OrderID: order.ID, AmountCents: 100, Reason: enums.RefundReasonOther}, pkgerrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	view, err := f.svc.Create(context.Background(), CreateInput{OrderID: order.ID, AmountCents: 5000, Reason: enums.RefundReasonOrderCancelled, Partial: &no, Actor: f.admin})
	require.NoError(t, err)
	assert.False(t, view.Partial)
}

func TestStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 4000)
	view := f.create(t, order.ID, 1000)

	_, err := f.svc.Approve(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: view.Version, Actor: f.admin})
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: view.Version, Actor: f.admin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, map[string]any{"currentVersion": 2}, pkgerrors.As(err).Details())
}

func TestTransitionsAreOneDirectional(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 4000)
	view := f.create(t, order.ID, 1000)

	_, err := f.svc.MarkProcessed(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: 1, Actor: f.admin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.issuer.calls)

	rejected, err := f.svc.Reject(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: 1, Note: "photo unclear", Actor: f.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.RefundRequestRejected, rejected.Status)
	require.NotNil(t, rejected.Note)
	assert.Equal(t, "photo unclear", *rejected.Note)

	_, err = f.svc.Approve(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: rejected.Version, Actor: f.admin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestEveryTransitionAppendsTimelineAndEvent(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 4000)
	view := f.create(t, order.ID, 4000)
	f.process(t, view)

	got, err := f.svc.Get(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, got.Timeline, 3)
	assert.Equal(t, "Refund requested", got.Timeline[0].Label)
	assert.Equal(t, "Refund approved", got.Timeline[1].Label)
	assert.Equal(t, "Refund processed", got.Timeline[2].Label)
	assert.True(t, got.Timeline[0].OccurredAt.Before(got.Timeline[2].OccurredAt))

	require.Len(t, f.emitter.events, 3)
	last := f.emitter.events[2]
	assert.Equal(t, enums.EventRefundStatusChanged, last.EventType)
	payload := last.Data.(payloads.RefundStatusChangedEvent)
	assert.Equal(t, enums.RefundRequestProcessed, payload.Status)
	assert.Equal(t, enums.RefundStatusFull, payload.OrderRefund)
	assert.Equal(t, int64(4000), payload.RefundedCents)
}

func TestProcessingRechecksRemainder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000)

	// both fit the remainder when requested
	a := f.create(t, order.ID, 3000)
	b := f.create(t, order.ID, 3000)
	f.process(t, a)

	approved, err := f.svc.Approve(context.Background(), DecisionInput{RefundID: b.ID, ExpectedVersion: b.Version, Actor: f.admin})
	require.NoError(t, err)
	_, err = f.svc.MarkProcessed(context.Background(), DecisionInput{RefundID: b.ID, ExpectedVersion: approved.Version, Actor: f.admin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, []int64{3000}, f.issuer.calls)

	still, err := f.svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundRequestApproved, still.Status)
}

type lockTrackingRepo struct {
	Repository
	locked *[]uuid.UUID
}

func (r lockTrackingRepo) WithTx(tx *gorm.DB) Repository {
	return lockTrackingRepo{Repository: r.Repository.WithTx(tx), locked: r.locked}
}

func (r lockTrackingRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	*r.locked = append(*r.locked, id)
	return r.Repository.LockByID(ctx, id)
}

func TestRefundRowLockedBeforeMoneyMoves(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000)
	view := f.create(t, order.ID, 1000)

	var locked []uuid.UUID
	f.svc.repo = lockTrackingRepo{Repository: f.svc.repo, locked: &locked}
	approved, err := f.svc.Approve(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: view.Version, Actor: f.admin})
	require.NoError(t, err)

	lockedAtIssue := 0
	f.issuer.before = func() { lockedAtIssue = len(locked) }
	_, err = f.svc.MarkProcessed(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: approved.Version, Actor: f.admin})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{view.ID, view.ID}, locked)
	assert.Equal(t, 2, lockedAtIssue, "the processing transition must hold the refund lock when issuing")
}

func TestIssuerFailureLeavesRefundApproved(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, 5000)
	view := f.create(t, order.ID, 1000)
	approved, err := f.svc.Approve(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: view.Version, Actor: f.admin})
	require.NoError(t, err)

	f.issuer.err = pkgerrors.New(pkgerrors.CodeDependency, "processor unavailable")
	_, err = f.svc.MarkProcessed(context.Background(), DecisionInput{RefundID: view.ID, ExpectedVersion: approved.Version, Actor: f.admin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	stored, err := orders.NewRepository(f.conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RefundedCents)
}

func TestListPagesAndFilters(t *testing.T) {
	f := newFixture(t)
	first := f.seedOrder(t, 9000)
	second := f.seedOrder(t, 9000)
	for i := 0; i < 3; i++ {
		f.create(t, first.ID, 1000)
	}
	f.create(t, second.ID, 1000)

	page, err := f.svc.List(context.Background(), ListFilter{OrderID: &first.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Refunds, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(context.Background(), ListFilter{OrderID: &first.ID, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Refunds, 1)
	assert.Empty(t, rest.NextCursor)
	assert.NotEqual(t, page.Refunds[1].ID, rest.Refunds[0].ID)

	status := enums.RefundRequestApproved
	none, err := f.svc.List(context.Background(), ListFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, none.Refunds)

	_, err = f.svc.List(context.Background(), ListFilter{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetUnknownRefund(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/repository"
)

type mockOutboxRepo struct {
	events    []*repository.OutboxEvent
	getErr    error
	processed []int64
}

func (m *mockOutboxRepo) GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.events, nil
}

func (m *mockOutboxRepo) MarkEventAsProcessed(ctx context.Context, id int64) error {
	m.processed = append(m.processed, id)
	return nil
}

type mockRecovery struct {
	pending    []*domain.Order
	pendingErr error

	completed []uuid.UUID
	failed    []uuid.UUID

	completeErr error
}

func (m *mockRecovery) PendingVerification(ctx context.Context, limit int) ([]*domain.Order, error) {
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	return m.pending, nil
}

func (m *mockRecovery) Complete(ctx context.Context, order *domain.Order) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.completed = append(m.completed, order.ID)
	return nil
}

func (m *mockRecovery) Fail(ctx context.Context, orderID uuid.UUID) error {
	m.failed = append(m.failed, orderID)
	return nil
}

type mockIntents struct {
	statuses map[string]domain.IntentStatus
	err      error
	calls    []string
}

func (m *mockIntents) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	m.calls = append(m.calls, id)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.PaymentIntent{ID: id, Status: m.statuses[id]}, nil
}

func newTestPoller(repo OutboxRepo, recovery OrderRecovery, intents IntentFetcher) *OutboxPoller {
	p := NewOutboxPoller(repo, recovery, intents, "localhost:9092")
	p.recoveryAge = time.Minute
	return p
}

func pendingOrder(intentID string, age time.Duration) *domain.Order {
	return &domain.Order{
		ID:        uuid.New(),
		BuyerID:   "buyer-1",
		IntentID:  intentID,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestRecovery_SettledIntentCompletesOrder(t *testing.T) {
	order := pendingOrder("pi_1", 5*time.Minute)
	recovery := &mockRecovery{pending: []*domain.Order{order}}
	intents := &mockIntents{statuses: map[string]domain.IntentStatus{"pi_1": domain.IntentStatusSucceeded}}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Equal(t, []uuid.UUID{order.ID}, recovery.completed)
	assert.Empty(t, recovery.failed)
}

func TestRecovery_TerminalIntentFailsOrder(t *testing.T) {
	order := pendingOrder("pi_1", 5*time.Minute)
	recovery := &mockRecovery{pending: []*domain.Order{order}}
	intents := &mockIntents{statuses: map[string]domain.IntentStatus{"pi_1": domain.IntentStatusCanceled}}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Empty(t, recovery.completed)
	assert.Equal(t, []uuid.UUID{order.ID}, recovery.failed)
}

func TestRecovery_ProcessingIntentLeftForNextTick(t *testing.T) {
	order := pendingOrder("pi_1", 5*time.Minute)
	recovery := &mockRecovery{pending: []*domain.Order{order}}
	intents := &mockIntents{statuses: map[string]domain.IntentStatus{"pi_1": domain.IntentStatusProcessing}}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Empty(t, recovery.completed)
	assert.Empty(t, recovery.failed)
}

func TestRecovery_YoungOrdersSkipped(t *testing.T) {
	order := pendingOrder("pi_1", 10*time.Second)
	recovery := &mockRecovery{pending: []*domain.Order{order}}
	intents := &mockIntents{statuses: map[string]domain.IntentStatus{"pi_1": domain.IntentStatusSucceeded}}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Empty(t, intents.calls, "in-band verification may still be running")
	assert.Empty(t, recovery.completed)
}

func TestRecovery_UnreachableProcessorLeavesOrderPending(t *testing.T) {
	order := pendingOrder("pi_1", 5*time.Minute)
	recovery := &mockRecovery{pending: []*domain.Order{order}}
	intents := &mockIntents{err: errors.New("connection refused")}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Empty(t, recovery.completed)
	assert.Empty(t, recovery.failed)
}

func TestRecovery_OneFailureDoesNotBlockOthers(t *testing.T) {
	first := pendingOrder("pi_1", 5*time.Minute)
	second := pendingOrder("pi_2", 5*time.Minute)
	recovery := &mockRecovery{pending: []*domain.Order{first, second}, completeErr: errors.New("deadlock")}
	intents := &mockIntents{statuses: map[string]domain.IntentStatus{
		"pi_1": domain.IntentStatusSucceeded,
		"pi_2": domain.IntentStatusFailed,
	}}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	require.Len(t, intents.calls, 2, "second order still checked after the first errors")
	assert.Equal(t, []uuid.UUID{second.ID}, recovery.failed)
}

func TestRecovery_FetchErrorIsGraceful(t *testing.T) {
	recovery := &mockRecovery{pendingErr: errors.New("database connection error")}
	intents := &mockIntents{}

	p := newTestPoller(&mockOutboxRepo{}, recovery, intents)
	p.recoverPendingOrders(context.Background())

	assert.Empty(t, intents.calls)
}

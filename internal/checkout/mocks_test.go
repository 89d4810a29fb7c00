package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/payment"
)

type mockGateway struct {
	mu sync.Mutex

	createCalls []payment.IntentRequest
	createErr   error
	// status handed to each created intent, in order; last entry repeats
	createStatuses []domain.IntentStatus

	getCalls  []string
	getErr    error
	getStatus domain.IntentStatus

	seq int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		createStatuses: []domain.IntentStatus{domain.IntentStatusSucceeded},
		getStatus:      domain.IntentStatusSucceeded,
	}
}

func (m *mockGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	idx := len(m.createCalls)
	m.createCalls = append(m.createCalls, req)
	status := m.createStatuses[min(idx, len(m.createStatuses)-1)]
	m.seq++
	return &domain.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", m.seq),
		ClientSecret: fmt.Sprintf("pi_%d_secret", m.seq),
		Amount:       req.Amount,
		Currency:     "usd",
		Status:       status,
	}, nil
}

func (m *mockGateway) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls = append(m.getCalls, id)
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &domain.PaymentIntent{ID: id, Status: m.getStatus}, nil
}

type mockMethods struct {
	methods []domain.PaymentMethod
	listErr error
}

func (m *mockMethods) List(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.methods, nil
}

func (m *mockMethods) GetDefault(ctx context.Context, userID string) (*domain.PaymentMethod, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	for i := range m.methods {
		if m.methods[i].IsDefault {
			return &m.methods[i], nil
		}
	}
	if len(m.methods) > 0 {
		return &m.methods[0], nil
	}
	return nil, nil
}

type mockCarts struct {
	cart     *domain.Cart
	getErr   error
	clearErr error

	clearCalls int
	// snapshot of how many orders were completed when ClearCart ran
	completedAtClear int
	recorder         *mockRecorder
}

func (m *mockCarts) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cart, nil
}

func (m *mockCarts) ClearCart(ctx context.Context, userID string) error {
	m.clearCalls++
	if m.recorder != nil {
		m.completedAtClear = len(m.recorder.completed)
	}
	return m.clearErr
}

type mockRecorder struct {
	pending   []*domain.Order
	completed []*domain.Order
	failed    []uuid.UUID

	recordErr   error
	completeErr error
}

func (m *mockRecorder) RecordPending(ctx context.Context, buyerID string, group domain.MerchantGroup, summary domain.CartSummary, intentID string) (*domain.Order, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	order := &domain.Order{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		SellerID: group.SellerID,
		IntentID: intentID,
		Subtotal: summary.Subtotal,
		Tax:      summary.Tax,
		Shipping: summary.Shipping,
		Total:    summary.Total,
		Status:   domain.OrderStatusPending,
	}
	m.pending = append(m.pending, order)
	return order, nil
}

func (m *mockRecorder) Complete(ctx context.Context, order *domain.Order) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	order.Status = domain.OrderStatusCompleted
	m.completed = append(m.completed, order)
	return nil
}

func (m *mockRecorder) Fail(ctx context.Context, orderID uuid.UUID) error {
	m.failed = append(m.failed, orderID)
	return nil
}

// stubSheet scripts the outcome of a presentation and can observe the lock
// while parked, which is how the lazy-acquisition tests see inside Pay.
type stubSheet struct {
	initErr    error
	presentErr error

	initCalls    []payment.SheetConfig
	presentCalls int

	onPresent func()
}

func (s *stubSheet) Init(_ context.Context, cfg payment.SheetConfig) error {
	s.initCalls = append(s.initCalls, cfg)
	return s.initErr
}

func (s *stubSheet) Present(_ context.Context) error {
	s.presentCalls++
	if s.onPresent != nil {
		s.onPresent()
	}
	return s.presentErr
}

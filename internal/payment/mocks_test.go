package payment

import (
	"context"
	"sync"

	"github.com/stripe/stripe-go/v81"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	stripeapi "github.com/m41na/payment-agent-sub001/internal/stripe"
)

// mockStripeClient implements stripeapi.Client for testing
type mockStripeClient struct {
	mu sync.Mutex

	createIntentCalls []stripeapi.IntentParams
	intents           map[string]*stripe.PaymentIntent
	nextIntent        *stripe.PaymentIntent
	intentErr         error
	intentSeq         int

	setupIntent   *stripe.SetupIntent
	setupErr      error
	setupCalls    int
	paymentMethod *stripe.PaymentMethod

	detachedTokens []string
	detachErr      error

	defaultToken  string
	setDefaultErr error

	subscription *stripe.Subscription
	subErr       error
}

var _ stripeapi.Client = (*mockStripeClient)(nil)

func (m *mockStripeClient) CreatePaymentIntent(p stripeapi.IntentParams) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createIntentCalls = append(m.createIntentCalls, p)
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	if m.nextIntent != nil {
		return m.nextIntent, nil
	}
	m.intentSeq++
	return &stripe.PaymentIntent{
		ID:           stripeIntentID(m.intentSeq),
		ClientSecret: stripeIntentID(m.intentSeq) + "_secret",
		Amount:       p.Amount,
		Currency:     stripe.Currency(p.Currency),
		Status:       stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func stripeIntentID(seq int) string {
	return "pi_mock_" + string(rune('a'+seq-1))
}

func (m *mockStripeClient) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	if pi, ok := m.intents[id]; ok {
		return pi, nil
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (m *mockStripeClient) CreateSetupIntent(string) (*stripe.SetupIntent, error) {
	m.mu.Lock()
	m.setupCalls++
	m.mu.Unlock()
	if m.setupErr != nil {
		return nil, m.setupErr
	}
	if m.setupIntent != nil {
		return m.setupIntent, nil
	}
	return &stripe.SetupIntent{ID: "seti_mock", ClientSecret: "seti_mock_secret"}, nil
}

func (m *mockStripeClient) GetSetupIntent(id string) (*stripe.SetupIntent, error) {
	if m.setupErr != nil {
		return nil, m.setupErr
	}
	if m.setupIntent != nil {
		return m.setupIntent, nil
	}
	return &stripe.SetupIntent{
		ID:            id,
		PaymentMethod: &stripe.PaymentMethod{ID: "pm_mock_token"},
	}, nil
}

func (m *mockStripeClient) GetPaymentMethod(token string) (*stripe.PaymentMethod, error) {
	if m.paymentMethod != nil {
		return m.paymentMethod, nil
	}
	return &stripe.PaymentMethod{
		ID: token,
		Card: &stripe.PaymentMethodCard{
			Brand:    stripe.PaymentMethodCardBrandVisa,
			Last4:    "4242",
			ExpMonth: 12,
			ExpYear:  2030,
		},
	}, nil
}

func (m *mockStripeClient) DetachPaymentMethod(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detachErr != nil {
		return m.detachErr
	}
	m.detachedTokens = append(m.detachedTokens, token)
	return nil
}

func (m *mockStripeClient) SetDefaultPaymentMethod(_, token string) error {
	if m.setDefaultErr != nil {
		return m.setDefaultErr
	}
	m.defaultToken = token
	return nil
}

func (m *mockStripeClient) CreateSubscription(string, string, string) (*stripe.Subscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	return m.subscription, nil
}

func (m *mockStripeClient) CancelSubscriptionAtPeriodEnd(id string) (*stripe.Subscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	return &stripe.Subscription{ID: id, CancelAtPeriodEnd: true}, nil
}

// mockMethodsRepo implements MethodsRepo in memory
type mockMethodsRepo struct {
	mu      sync.Mutex
	methods []domain.PaymentMethod
	listErr error
}

func (r *mockMethodsRepo) ListPaymentMethods(_ context.Context, userID string) ([]domain.PaymentMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.PaymentMethod
	for _, m := range r.methods {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *mockMethodsRepo) InsertPaymentMethod(_ context.Context, method *domain.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// newest first, matching the SQL ordering
	r.methods = append([]domain.PaymentMethod{*method}, r.methods...)
	return nil
}

func (r *mockMethodsRepo) DeletePaymentMethod(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.methods {
		if m.UserID == userID && m.ID == id {
			r.methods = append(r.methods[:i], r.methods[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *mockMethodsRepo) SwapDefaultPaymentMethod(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.methods {
		if r.methods[i].UserID == userID {
			r.methods[i].IsDefault = r.methods[i].ID == id
		}
	}
	return nil
}

// stubSheet resolves immediately with a preset outcome
type stubSheet struct {
	initErr    error
	presentErr error
	presented  int
	lastConfig SheetConfig
}

func (s *stubSheet) Init(_ context.Context, cfg SheetConfig) error {
	s.lastConfig = cfg
	return s.initErr
}

func (s *stubSheet) Present(context.Context) error {
	s.presented++
	return s.presentErr
}

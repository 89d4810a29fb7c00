package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newMethod(userID, token string, isDefault bool) *domain.PaymentMethod {
	return &domain.PaymentMethod{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProcessorToken: token,
		Brand:          "visa",
		Last4:          "4242",
		ExpiryMonth:    12,
		ExpiryYear:     2030,
		IsDefault:      isDefault,
	}
}

func TestPaymentMethods_ListOrderedByRecency(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := newMethod("u1", "pm_first", true)
	require.NoError(t, repo.InsertPaymentMethod(ctx, first))
	time.Sleep(10 * time.Millisecond) // distinct created_at
	second := newMethod("u1", "pm_second", false)
	require.NoError(t, repo.InsertPaymentMethod(ctx, second))

	methods, err := repo.ListPaymentMethods(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "pm_second", methods[0].ProcessorToken)
	assert.Equal(t, "pm_first", methods[1].ProcessorToken)
}

func TestPaymentMethods_DuplicateToken(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.InsertPaymentMethod(ctx, newMethod("u1", "pm_dup", false)))
	err := repo.InsertPaymentMethod(ctx, newMethod("u2", "pm_dup", false))
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestSwapDefaultPaymentMethod_ExactlyOneDefault(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	a := newMethod("u1", "pm_a", true)
	b := newMethod("u1", "pm_b", false)
	require.NoError(t, repo.InsertPaymentMethod(ctx, a))
	require.NoError(t, repo.InsertPaymentMethod(ctx, b))

	require.NoError(t, repo.SwapDefaultPaymentMethod(ctx, "u1", b.ID))

	methods, err := repo.ListPaymentMethods(ctx, "u1")
	require.NoError(t, err)
	defaults := 0
	for _, m := range methods {
		if m.IsDefault {
			defaults++
			assert.Equal(t, b.ID, m.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestSwapDefaultPaymentMethod_UnknownID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.SwapDefaultPaymentMethod(context.Background(), "u1", uuid.NewString())
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func testOrder(buyerID string) *domain.Order {
	return &domain.Order{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		SellerID: "s1",
		IntentID: "pi_123",
		Subtotal: 4000,
		Tax:      340,
		Shipping: 900,
		Total:    5240,
		Currency: "usd",
		Status:   domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ProductID: "p1", SellerID: "s1", Quantity: 1, UnitPrice: 1000, TotalPrice: 1000,
				Snapshot: domain.ProductSnapshot{Title: "camera", Merchant: "shop-s1", Condition: "used"}},
			{ProductID: "p2", SellerID: "s1", Quantity: 2, UnitPrice: 1500, TotalPrice: 3000,
				Snapshot: domain.ProductSnapshot{Title: "lens", Merchant: "shop-s1", Condition: "new"}},
		},
	}
}

func TestCreateOrder_RoundTripWithItems(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := testOrder("u1")
	require.NoError(t, repo.CreateOrder(ctx, order))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, got.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "camera", got.Items[0].Snapshot.Title)

	var itemTotal int64
	for _, item := range got.Items {
		itemTotal += item.TotalPrice
	}
	assert.Equal(t, got.Total, itemTotal+got.Tax+got.Shipping)
}

func TestUpdateOrderStatus_Monotonic(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := testOrder("u1")
	require.NoError(t, repo.CreateOrder(ctx, order))

	require.NoError(t, repo.UpdateOrderStatus(ctx, order.ID,
		domain.OrderStatusPending, domain.OrderStatusCompleted))

	// a completed order never reverts
	err := repo.UpdateOrderStatus(ctx, order.ID,
		domain.OrderStatusCompleted, domain.OrderStatusFailed)
	assert.ErrorIs(t, err, ErrIllegalOrderTransition)

	// stale CAS loses: the row is no longer PENDING
	err = repo.UpdateOrderStatus(ctx, order.ID,
		domain.OrderStatusPending, domain.OrderStatusFailed)
	assert.ErrorIs(t, err, ErrIllegalOrderTransition)
}

func TestTransactions_CounterPartyVisibility(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	tx := &domain.Transaction{
		ID:       uuid.NewString(),
		BuyerID:  "buyer1",
		SellerID: "seller1",
		OrderID:  uuid.NewString(),
		IntentID: "pi_1",
		Amount:   5240,
		Status:   domain.IntentStatusSucceeded,
	}
	require.NoError(t, repo.InsertTransaction(ctx, tx))

	forBuyer, err := repo.ListTransactions(ctx, "buyer1")
	require.NoError(t, err)
	assert.Len(t, forBuyer, 1)

	forSeller, err := repo.ListTransactions(ctx, "seller1")
	require.NoError(t, err)
	assert.Len(t, forSeller, 1)

	forStranger, err := repo.ListTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, forStranger)
}

func TestOutbox_Lifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.InsertOutboxEvent(ctx, "order-1", "order.completed", []byte(`{"total":5240}`)))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order.completed", events[0].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

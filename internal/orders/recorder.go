// Package orders persists the outcome of a checkout. Orders are written with
// the exact totals the cart aggregator computed; this package never
// recomputes money on its own.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/repository"
)

// Repo is the slice of the persistence surface the recorder needs.
type Repo interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	GetPendingVerificationOrders(ctx context.Context, limit int) ([]*domain.Order, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

type Recorder struct {
	repo Repo
}

func NewRecorder(repo Repo) *Recorder {
	return &Recorder{repo: repo}
}

// RecordPending persists one merchant group's order in PENDING. The group
// summary must come from the cart aggregator over exactly these items.
func (r *Recorder) RecordPending(ctx context.Context, buyerID string, group domain.MerchantGroup, summary domain.CartSummary, intentID string) (*domain.Order, error) {
	items := make([]domain.OrderItem, len(group.Items))
	for i, ci := range group.Items {
		items[i] = domain.OrderItem{
			ProductID:  ci.ProductID,
			SellerID:   group.SellerID,
			Quantity:   ci.Quantity,
			UnitPrice:  ci.UnitPrice,
			TotalPrice: ci.UnitPrice * int64(ci.Quantity),
			Snapshot:   ci.Snapshot,
		}
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
		Currency: "usd",
		Status:   domain.OrderStatusPending,
		Items:    items,
	}

	if err := r.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("record pending order: %w", err)
	}
	return order, nil
}

// Complete advances the order to COMPLETED and writes the transaction record
// and the outbox announcement. Called only once the authoritative intent
// fetch reported success.
func (r *Recorder) Complete(ctx context.Context, order *domain.Order) error {
	if err := r.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCompleted); err != nil {
		return err
	}
	order.Status = domain.OrderStatusCompleted

	tx := &domain.Transaction{
		ID:       uuid.NewString(),
		BuyerID:  order.BuyerID,
		SellerID: order.SellerID,
		OrderID:  order.ID.String(),
		IntentID: order.IntentID,
		Amount:   order.Total,
		Status:   domain.IntentStatusSucceeded,
	}
	if err := r.repo.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	payload := map[string]interface{}{
		"order_id":     order.ID.String(),
		"buyer_id":     order.BuyerID,
		"seller_id":    order.SellerID,
		"total":        order.Total,
		"currency":     order.Currency,
		"completed_at": time.Now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order payload: %w", err)
	}
	if err := r.repo.InsertOutboxEvent(ctx, order.ID.String(), "order.completed", payloadJSON); err != nil {
		return fmt.Errorf("record outbox event: %w", err)
	}

	return nil
}

// Fail moves a pending order to FAILED. A no-op error for already-terminal
// orders is surfaced so callers notice stale state.
func (r *Recorder) Fail(ctx context.Context, orderID uuid.UUID) error {
	return r.repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusFailed)
}

func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.repo.GetOrderByID(ctx, id)
}

func (r *Recorder) ListForBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return r.repo.ListOrdersByBuyer(ctx, buyerID)
}

// PendingVerification lists orders still waiting for settlement confirmation.
func (r *Recorder) PendingVerification(ctx context.Context, limit int) ([]*domain.Order, error) {
	return r.repo.GetPendingVerificationOrders(ctx, limit)
}

var _ Repo = (*repository.Repository)(nil)

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// ErrIllegalOrderTransition is returned when an update would move an order
// backwards through its lifecycle.
var ErrIllegalOrderTransition = errors.New("illegal order status transition")

// CreateOrder writes the order and its items as one transaction. Items live
// in their own table so the receipt rows are addressable, but the write is a
// single logical unit.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, buyer_id, seller_id, intent_id, subtotal, tax, shipping, total, currency, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`
	if _, err := tx.ExecContext(ctx, query,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.IntentID,
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Total,
		order.Currency,
		order.Status); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, seller_id, quantity, unit_price, total_price, snapshot)
	              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, item := range order.Items {
		snapshotJSON, err := json.Marshal(item.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal item snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID,
			item.ProductID,
			item.SellerID,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			snapshotJSON); err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, buyer_id, seller_id, intent_id, subtotal, tax, shipping, total, currency, status, created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.BuyerID,
		&order.SellerID,
		&order.IntentID,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.loadOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *Repository) loadOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT product_id, seller_id, quantity, unit_price, total_price, snapshot
	          FROM order_items WHERE order_id = $1`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var snapshotJSON []byte
		if err := rows.Scan(
			&item.ProductID,
			&item.SellerID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&snapshotJSON,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		if err := json.Unmarshal(snapshotJSON, &item.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal item snapshot: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	query := `SELECT id, buyer_id, seller_id, intent_id, subtotal, tax, shipping, total, currency, status, created_at, updated_at
	          FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by buyer: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.BuyerID,
			&order.SellerID,
			&order.IntentID,
			&order.Subtotal,
			&order.Tax,
			&order.Shipping,
			&order.Total,
			&order.Currency,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus performs a compare-and-swap on the status column. The
// `from` guard enforces the monotonic lifecycle at the database level.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	if !domain.CanTransitionOrder(from, to) {
		return ErrIllegalOrderTransition
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrIllegalOrderTransition
	}
	return nil
}

func (r *Repository) GetPendingVerificationOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT id, buyer_id, seller_id, intent_id, subtotal, tax, shipping, total, currency, status, created_at, updated_at
	          FROM orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, domain.OrderStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending verification orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.BuyerID,
			&order.SellerID,
			&order.IntentID,
			&order.Subtotal,
			&order.Tax,
			&order.Shipping,
			&order.Total,
			&order.Currency,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, buyer_id, seller_id, order_id, intent_id, amount, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	if _, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.BuyerID,
		t.SellerID,
		t.OrderID,
		t.IntentID,
		t.Amount,
		t.Status); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns rows where the user is buyer or counter-party.
func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	query := `SELECT id, buyer_id, seller_id, order_id, intent_id, amount, status, created_at
	          FROM transactions WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.BuyerID,
			&t.SellerID,
			&t.OrderID,
			&t.IntentID,
			&t.Amount,
			&t.Status,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txs, nil
}

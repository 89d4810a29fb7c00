package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	// OrderStatusPending covers the gap between client-observed success and
	// the server-confirmed settlement fetch.
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// CanTransitionOrder encodes the monotonic order lifecycle. A completed order
// never reverts.
func CanTransitionOrder(from, to OrderStatus) bool {
	return from == OrderStatusPending &&
		(to == OrderStatusCompleted || to == OrderStatusFailed)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem carries the same snapshot discipline as CartItem so the receipt
// is immutable evidence independent of catalog drift.
type OrderItem struct {
	ProductID  string          `json:"product_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  int64           `json:"unit_price"`
	TotalPrice int64           `json:"total_price"`
	Snapshot   ProductSnapshot `json:"snapshot"`
}

type Order struct {
	ID        uuid.UUID
	BuyerID   string
	SellerID  string
	IntentID  string
	Subtotal  int64
	Tax       int64
	Shipping  int64
	Total     int64
	Currency  string
	Status    OrderStatus
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

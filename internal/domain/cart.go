package domain

import "time"

// UnknownSeller groups cart items whose seller could not be resolved. Such
// items still produce a valid, renderable merchant group.
const UnknownSeller = "unknown"

// ProductSnapshot is captured when an item enters the cart so display and
// receipts stay stable even if the catalog entry later changes.
type ProductSnapshot struct {
	Title     string `bson:"title" json:"title"`
	Merchant  string `bson:"merchant" json:"merchant"`
	Condition string `bson:"condition" json:"condition"`
}

type CartItem struct {
	ProductID string          `bson:"product_id" json:"product_id"`
	SellerID  string          `bson:"seller_id" json:"seller_id"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	UnitPrice int64           `bson:"unit_price" json:"unit_price"` // minor units
	Snapshot  ProductSnapshot `bson:"snapshot" json:"snapshot"`
	AddedAt   time.Time       `bson:"added_at" json:"added_at"`
}

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// MerchantGroup partitions cart items by seller. Each group is charged
// independently because each seller is a distinct payment recipient.
type MerchantGroup struct {
	SellerID  string     `json:"seller_id"`
	Merchant  string     `json:"merchant"`
	Items     []CartItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

// CartSummary is a pure function of the cart contents; nothing here is
// persisted. All amounts are minor units.
type CartSummary struct {
	Subtotal       int64           `json:"subtotal"`
	Tax            int64           `json:"tax"`
	Shipping       int64           `json:"shipping"`
	Total          int64           `json:"total"`
	ItemCount      int             `json:"item_count"`
	MerchantGroups []MerchantGroup `json:"merchant_groups"`
}

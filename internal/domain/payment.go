package domain

import "time"

// PaymentMethod mirrors a tokenized instrument held by the processor. The raw
// card data never reaches this service; ProcessorToken is the only reference.
type PaymentMethod struct {
	ID             string
	UserID         string
	ProcessorToken string
	Brand          string
	Last4          string
	ExpiryMonth    int
	ExpiryYear     int
	IsDefault      bool
	CreatedAt      time.Time
}

type IntentStatus string

const (
	IntentStatusRequiresAction IntentStatus = "requires_action"
	IntentStatusProcessing     IntentStatus = "processing"
	IntentStatusSucceeded      IntentStatus = "succeeded"
	IntentStatusFailed         IntentStatus = "failed"
	IntentStatusCanceled       IntentStatus = "canceled"
)

// IsTerminal reports whether the intent can change no further. A retry after
// a terminal intent always creates a new intent.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusFailed || s == IntentStatusCanceled
}

// PaymentIntent is one attempted charge. ClientSecret is single use: it is
// handed to the confirmation sheet and dropped, never logged or persisted.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64 // minor currency units, never floating point
	Currency     string
	Status       IntentStatus
}

// Transaction is the authoritative record of a settled charge, visible to the
// buyer and the counter-party seller.
type Transaction struct {
	ID        string
	BuyerID   string
	SellerID  string
	OrderID   string
	IntentID  string
	Amount    int64
	Status    IntentStatus
	CreatedAt time.Time
}

package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	// SubscriptionPending holds a plan whose charge the processor has not
	// settled yet; the settlement poller activates or cancels it.
	SubscriptionPending SubscriptionStatus = "pending"
)

type SubscriptionType string

const (
	SubscriptionOneTime   SubscriptionType = "one_time"
	SubscriptionRecurring SubscriptionType = "recurring"
)

// PaymentOption is the explicit routing parameter for plan purchases. When
// present it wins over any inference from saved-method presence.
type PaymentOption string

const (
	PaymentOptionSaved   PaymentOption = "saved"
	PaymentOptionOneTime PaymentOption = "one_time"
)

type Subscription struct {
	ID               string
	UserID           string
	PlanID           string
	ProcessorSubID   string
	IntentID         string // charge backing a pending plan, for settlement
	Status           SubscriptionStatus
	Type             SubscriptionType
	CurrentPeriodEnd time.Time
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanCancel holds exactly when the subscription is recurring and active.
func (s *Subscription) CanCancel() bool {
	return s.Type == SubscriptionRecurring && s.Status == SubscriptionActive
}

// IsExpired is a derived predicate, recomputed on every read rather than
// pushed from the processor.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Plan struct {
	ID       string
	Name     string
	Amount   int64 // minor units
	Interval SubscriptionType
}

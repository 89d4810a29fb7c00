// Package stripe wraps the payment processor SDK. It is the only package that
// sees the processor secret key; everything above it works with opaque tokens.
package stripe

import (
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/paymentmethod"
	"github.com/stripe/stripe-go/v81/setupintent"
	sub "github.com/stripe/stripe-go/v81/subscription"
)

// Client is an interface over Stripe operations to enable testing with mocks.
type Client interface {
	CreatePaymentIntent(params IntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string) (*stripe.PaymentIntent, error)
	CreateSetupIntent(customerID string) (*stripe.SetupIntent, error)
	GetSetupIntent(id string) (*stripe.SetupIntent, error)
	GetPaymentMethod(token string) (*stripe.PaymentMethod, error)
	DetachPaymentMethod(token string) error
	SetDefaultPaymentMethod(customerID, token string) error
	CreateSubscription(customerID, priceID, paymentMethodToken string) (*stripe.Subscription, error)
	CancelSubscriptionAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error)
}

// IntentParams carries the fields the gateway fills for one attempted charge.
type IntentParams struct {
	Amount             int64
	Currency           string
	Description        string
	CustomerID         string
	PaymentMethodToken string // empty for the one-time flow
	Confirm            bool   // confirm off-session against a saved method
	IdempotencyKey     string
}

// StripeClient implements Client with the real Stripe SDK.
type StripeClient struct{}

func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

func (c *StripeClient) CreatePaymentIntent(p IntentParams) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.Amount),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.PaymentMethodToken != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodToken)
	}
	if p.Confirm {
		params.Confirm = stripe.Bool(true)
		params.OffSession = stripe.Bool(true)
	}
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	return paymentintent.New(params)
}

func (c *StripeClient) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, nil)
}

func (c *StripeClient) CreateSetupIntent(customerID string) (*stripe.SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
	}
	return setupintent.New(params)
}

func (c *StripeClient) GetSetupIntent(id string) (*stripe.SetupIntent, error) {
	return setupintent.Get(id, nil)
}

func (c *StripeClient) GetPaymentMethod(token string) (*stripe.PaymentMethod, error) {
	return paymentmethod.Get(token, nil)
}

func (c *StripeClient) DetachPaymentMethod(token string) error {
	_, err := paymentmethod.Detach(token, nil)
	return err
}

func (c *StripeClient) SetDefaultPaymentMethod(customerID, token string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(token),
		},
	}
	_, err := customer.Update(customerID, params)
	return err
}

func (c *StripeClient) CreateSubscription(customerID, priceID, paymentMethodToken string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if paymentMethodToken != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodToken)
	}
	params.PaymentBehavior = stripe.String("default_incomplete")
	params.AddExpand("latest_invoice.payment_intent")

	return sub.New(params)
}

func (c *StripeClient) CancelSubscriptionAtPeriodEnd(subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	return sub.Update(subscriptionID, params)
}

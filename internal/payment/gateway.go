package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v81"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	stripeapi "github.com/m41na/payment-agent-sub001/internal/stripe"
)

// IntentRequest describes one attempted charge. MethodToken is empty for the
// one-time flow; Confirm charges a saved method off-session.
type IntentRequest struct {
	Amount         int64
	Description    string
	CustomerID     string
	MethodToken    string
	Confirm        bool
	IdempotencyKey string
}

// IntentGateway creates and fetches payment intents against the processor.
// It validates input before any network call and never decides success
// itself; callers must treat anything but a succeeded status as
// non-terminal-success.
type IntentGateway struct {
	client   stripeapi.Client
	breaker  *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	currency string
}

func NewIntentGateway(client stripeapi.Client) *IntentGateway {
	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe-intents",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	})
	return &IntentGateway{
		client:   client,
		breaker:  breaker,
		currency: "usd",
	}
}

// CreateIntent makes a fresh intent per call; intents are never cached or
// reused across retries.
func (g *IntentGateway) CreateIntent(ctx context.Context, req IntentRequest) (*domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, domain.ValidationError("amount must be a positive number of minor units")
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NetworkError("request aborted", err)
	}

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.client.CreatePaymentIntent(stripeapi.IntentParams{
			Amount:             req.Amount,
			Currency:           g.currency,
			Description:        req.Description,
			CustomerID:         req.CustomerID,
			PaymentMethodToken: req.MethodToken,
			Confirm:            req.Confirm,
			IdempotencyKey:     req.IdempotencyKey,
		})
	})
	if err != nil {
		return nil, MapProcessorError(err)
	}

	return fromStripeIntent(pi), nil
}

// GetIntent re-fetches the authoritative intent state. Used for the second
// phase of checkout completion and by the recovery poller.
func (g *IntentGateway) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	if id == "" {
		return nil, domain.ValidationError("intent id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NetworkError("request aborted", err)
	}

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.client.GetPaymentIntent(id)
	})
	if err != nil {
		return nil, MapProcessorError(err)
	}

	return fromStripeIntent(pi), nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       mapIntentStatus(pi.Status),
	}
}

func mapIntentStatus(s stripe.PaymentIntentStatus) domain.IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.IntentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return domain.IntentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return domain.IntentStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return domain.IntentStatusRequiresAction
	default:
		return domain.IntentStatusFailed
	}
}

// MapProcessorError folds SDK and breaker failures into the error taxonomy.
func MapProcessorError(err error) *domain.PaymentError {
	if err == nil {
		return nil
	}

	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch {
		case sErr.HTTPStatusCode == 401:
			return domain.AuthError("payment session expired, please sign in again")
		case sErr.Type == stripe.ErrorTypeCard:
			// decline messages are actionable, surface them verbatim
			return domain.ProcessorError(string(sErr.Code), sErr.Msg, err)
		case sErr.Type == stripe.ErrorTypeInvalidRequest:
			return &domain.PaymentError{Kind: domain.ErrKindValidation, Code: string(sErr.Code), Message: sErr.Msg, Err: err}
		case sErr.Type == stripe.ErrorTypeAPI:
			return domain.NetworkError("could not reach the payment processor", err)
		default:
			return domain.ProcessorError(string(sErr.Code), "payment was not accepted", err)
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NetworkError("payment processor temporarily unavailable", err)
	}

	return domain.NetworkError("payment request failed", err)
}

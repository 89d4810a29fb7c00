// Package subscription sells access plans: recurring ones live processor-side
// as real subscriptions, one-time passes are a single charge with a local
// expiry. Both flows share the confirmation sheet, and therefore the sheet
// lock, with checkout.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/payment"
	stripeapi "github.com/m41na/payment-agent-sub001/internal/stripe"
)

const (
	codePurchaseInProgress  = "checkout_in_progress"
	codeConfirmationTimeout = "confirmation_timeout"
	codePendingVerification = "pending_verification"
)

// Gateway is the slice of the intent gateway plan purchases use.
type Gateway interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

// Methods resolves the user's default instrument for the saved route.
type Methods interface {
	GetDefault(ctx context.Context, userID string) (*domain.PaymentMethod, error)
}

type Orchestrator struct {
	client  stripeapi.Client
	gateway Gateway
	methods Methods
	store   *Store
	catalog *Catalog
	lock    *payment.SheetLock
	sheet   payment.ConfirmationSheet
	now     func() time.Time
}

func NewOrchestrator(client stripeapi.Client, gateway Gateway, methods Methods, store *Store, catalog *Catalog, lock *payment.SheetLock, sheet payment.ConfirmationSheet) *Orchestrator {
	return &Orchestrator{
		client:  client,
		gateway: gateway,
		methods: methods,
		store:   store,
		catalog: catalog,
		lock:    lock,
		sheet:   sheet,
		now:     time.Now,
	}
}

// PurchaseRequest buys one plan. Option, when set, decides the funding route
// outright; when empty the route is inferred from whether a default saved
// method exists.
type PurchaseRequest struct {
	UserID     string
	CustomerID string
	PlanID     string
	Option     domain.PaymentOption
}

// Purchase runs one plan purchase. The returned subscription is non-nil only
// when the result is a success.
func (o *Orchestrator) Purchase(ctx context.Context, req PurchaseRequest) (*domain.Subscription, domain.PaymentResult) {
	plan, ok := o.catalog.Get(req.PlanID)
	if !ok {
		return nil, domain.FailedResult(domain.ValidationError("unknown plan"))
	}
	if o.store.ActiveForPlan(req.UserID, req.PlanID, o.now()) {
		return nil, domain.FailedResult(domain.ValidationError("this plan is already active"))
	}

	token, perr := o.resolveRoute(ctx, req)
	if perr != nil {
		return nil, domain.FailedResult(perr)
	}

	if plan.Plan.Interval == domain.SubscriptionRecurring {
		return o.purchaseRecurring(ctx, req, plan, token)
	}
	return o.purchaseOneTime(ctx, req, plan, token)
}

// resolveRoute maps the payment option to a processor token. An explicit
// option always wins; inference only fills silence.
func (o *Orchestrator) resolveRoute(ctx context.Context, req PurchaseRequest) (string, *domain.PaymentError) {
	switch req.Option {
	case domain.PaymentOptionOneTime:
		return "", nil
	case domain.PaymentOptionSaved:
		def, err := o.methods.GetDefault(ctx, req.UserID)
		if err != nil {
			return "", domain.AsPaymentError(err)
		}
		if def == nil {
			return "", domain.ValidationError("no saved payment methods to charge")
		}
		return def.ProcessorToken, nil
	case "":
		def, err := o.methods.GetDefault(ctx, req.UserID)
		if err != nil {
			return "", domain.AsPaymentError(err)
		}
		if def == nil {
			return "", nil // fall through to the sheet
		}
		return def.ProcessorToken, nil
	default:
		return "", domain.ValidationError(fmt.Sprintf("unknown payment option %q", req.Option))
	}
}

func (o *Orchestrator) purchaseRecurring(ctx context.Context, req PurchaseRequest, plan CatalogPlan, token string) (*domain.Subscription, domain.PaymentResult) {
	if req.CustomerID == "" {
		return nil, domain.FailedResult(domain.ValidationError("a customer profile is required for recurring plans"))
	}

	sub, err := o.client.CreateSubscription(req.CustomerID, plan.ProcessorPriceID, token)
	if err != nil {
		return nil, domain.FailedResult(payment.MapProcessorError(err))
	}

	intent := latestIntent(sub)
	if intent == nil {
		return nil, domain.FailedResult(domain.ProcessorError("subscription_incomplete", "the plan could not be activated", nil))
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		// first invoice settled off-session

	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		if perr, canceled := o.confirmOnSheet(ctx, req.UserID, intent.ClientSecret); perr != nil || canceled {
			if canceled {
				return nil, domain.CanceledResult()
			}
			return nil, domain.FailedResult(perr)
		}
		if ok, res := o.verifyAfterSheet(ctx, req, plan, intent.ID, sub.ID, time.Unix(sub.CurrentPeriodEnd, 0)); !ok {
			return nil, res
		}

	case stripe.PaymentIntentStatusProcessing:
		// charged but not settled: park the plan, the settlement sweep
		// activates or cancels it
		return nil, o.savePending(req, plan, intent.ID, sub.ID, time.Unix(sub.CurrentPeriodEnd, 0))

	default:
		return nil, domain.FailedResult(domain.ProcessorError("", "the plan payment was not accepted", nil))
	}

	now := o.now()
	local := &domain.Subscription{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		PlanID:           plan.Plan.ID,
		ProcessorSubID:   sub.ID,
		Status:           domain.SubscriptionActive,
		Type:             domain.SubscriptionRecurring,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	o.store.Save(local)
	return local, domain.SucceededResult(nil)
}

func (o *Orchestrator) purchaseOneTime(ctx context.Context, req PurchaseRequest, plan CatalogPlan, token string) (*domain.Subscription, domain.PaymentResult) {
	intent, err := o.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:         plan.Plan.Amount,
		Description:    fmt.Sprintf("%s plan", plan.Plan.Name),
		CustomerID:     req.CustomerID,
		MethodToken:    token,
		Confirm:        token != "",
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, domain.FailedResult(domain.AsPaymentError(err))
	}

	switch intent.Status {
	case domain.IntentStatusSucceeded:

	case domain.IntentStatusRequiresAction:
		if perr, canceled := o.confirmOnSheet(ctx, req.UserID, intent.ClientSecret); perr != nil || canceled {
			if canceled {
				return nil, domain.CanceledResult()
			}
			return nil, domain.FailedResult(perr)
		}
		if ok, res := o.verifyAfterSheet(ctx, req, plan, intent.ID, "", time.Time{}); !ok {
			return nil, res
		}

	case domain.IntentStatusProcessing:
		return nil, o.savePending(req, plan, intent.ID, "", time.Time{})

	default:
		return nil, domain.FailedResult(domain.ProcessorError("", "the plan payment was not accepted", nil))
	}

	now := o.now()
	local := &domain.Subscription{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		PlanID:    plan.Plan.ID,
		Status:    domain.SubscriptionActive,
		Type:      domain.SubscriptionOneTime,
		ExpiresAt: now.Add(plan.AccessFor),
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.store.Save(local)
	return local, domain.SucceededResult(nil)
}

// confirmOnSheet claims the shared lock and drives the sheet. Verifying that
// the charge actually settled is the caller's job.
func (o *Orchestrator) confirmOnSheet(ctx context.Context, userID, clientSecret string) (perr *domain.PaymentError, canceled bool) {
	if !o.lock.TryAcquire() {
		return &domain.PaymentError{
			Kind:    domain.ErrKindValidation,
			Code:    codePurchaseInProgress,
			Message: "checkout already in progress",
		}, false
	}
	defer o.lock.Release()

	if err := o.sheet.Init(ctx, payment.SheetConfig{
		ClientSecret: clientSecret,
		Description:  "Confirm your plan payment",
		OwnerID:      userID,
	}); err != nil {
		return domain.NetworkError("could not prepare payment sheet", err), false
	}

	err := o.sheet.Present(ctx)
	switch {
	case err == nil:
		return nil, false
	case errors.Is(err, payment.ErrSheetCanceled), errors.Is(err, context.Canceled):
		return nil, true
	case errors.Is(err, payment.ErrSheetTimeout), errors.Is(err, context.DeadlineExceeded):
		// the deadline expiring mid-sheet is a timeout, not the user
		// backing out: the charge may still settle processor-side
		return &domain.PaymentError{
			Kind:    domain.ErrKindProcessor,
			Code:    codeConfirmationTimeout,
			Message: "payment confirmation timed out, check your plans shortly",
			Err:     err,
		}, false
	default:
		return domain.NetworkError("payment sheet failed", err), false
	}
}

// verifyAfterSheet re-fetches the intent after client-observed success. A
// charge that cannot be confirmed settled is parked as a pending plan rather
// than dropped: the user may already have been charged.
func (o *Orchestrator) verifyAfterSheet(ctx context.Context, req PurchaseRequest, plan CatalogPlan, intentID, processorSubID string, periodEnd time.Time) (bool, domain.PaymentResult) {
	verified, err := o.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return false, o.savePending(req, plan, intentID, processorSubID, periodEnd)
	}
	switch verified.Status {
	case domain.IntentStatusSucceeded:
		return true, domain.PaymentResult{}
	case domain.IntentStatusFailed, domain.IntentStatusCanceled:
		return false, domain.FailedResult(domain.ProcessorError("", "the plan payment did not settle", nil))
	default:
		return false, o.savePending(req, plan, intentID, processorSubID, periodEnd)
	}
}

// savePending records a plan whose charge is in flight and tells the caller
// to check back. Keyed to the intent so the settlement sweep can finish it.
func (o *Orchestrator) savePending(req PurchaseRequest, plan CatalogPlan, intentID, processorSubID string, periodEnd time.Time) domain.PaymentResult {
	now := o.now()
	o.store.Save(&domain.Subscription{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		PlanID:           plan.Plan.ID,
		ProcessorSubID:   processorSubID,
		IntentID:         intentID,
		Status:           domain.SubscriptionPending,
		Type:             plan.Plan.Interval,
		CurrentPeriodEnd: periodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	return domain.FailedResult(&domain.PaymentError{
		Kind:    domain.ErrKindProcessor,
		Code:    codePendingVerification,
		Message: "payment is being confirmed, your plan will activate shortly",
	})
}

// Cancel schedules a recurring subscription to end at the period boundary.
// One-time passes cannot be canceled, they simply expire.
func (o *Orchestrator) Cancel(ctx context.Context, userID, subID string) error {
	sub, err := o.store.Get(userID, subID)
	if err != nil {
		return domain.ValidationError("subscription not found")
	}
	if !sub.CanCancel() {
		return domain.ValidationError("only active recurring subscriptions can be canceled")
	}

	if _, err := o.client.CancelSubscriptionAtPeriodEnd(sub.ProcessorSubID); err != nil {
		return payment.MapProcessorError(err)
	}

	// access continues until the paid period runs out
	if err := o.store.SetStatus(sub.ID, domain.SubscriptionCanceled, sub.CurrentPeriodEnd); err != nil {
		return domain.NetworkError("could not update subscription", err)
	}
	return nil
}

func (o *Orchestrator) Get(userID, subID string) (*domain.Subscription, error) {
	return o.store.Get(userID, subID)
}

func (o *Orchestrator) List(userID string) []*domain.Subscription {
	return o.store.ListByUser(userID)
}

func latestIntent(sub *stripe.Subscription) *stripe.PaymentIntent {
	if sub.LatestInvoice == nil {
		return nil
	}
	return sub.LatestInvoice.PaymentIntent
}

// SettlePending resolves parked plans against the processor: a settled charge
// activates the plan, a dead one cancels it, anything else stays parked for
// the next sweep.
func (o *Orchestrator) SettlePending(ctx context.Context) {
	for _, sub := range o.store.ListPending() {
		verified, err := o.gateway.GetIntent(ctx, sub.IntentID)
		if err != nil {
			log.Printf("pending plan %s: intent %s unreachable: %v", sub.ID, sub.IntentID, err)
			continue
		}
		switch verified.Status {
		case domain.IntentStatusSucceeded:
			var expiresAt time.Time
			if sub.Type == domain.SubscriptionOneTime {
				if plan, ok := o.catalog.Get(sub.PlanID); ok {
					expiresAt = o.now().Add(plan.AccessFor)
				}
			}
			if err := o.store.SetStatus(sub.ID, domain.SubscriptionActive, expiresAt); err != nil {
				log.Printf("pending plan %s: activate failed: %v", sub.ID, err)
				continue
			}
			log.Printf("pending plan %s settled, activated for user %s", sub.ID, sub.UserID)
		case domain.IntentStatusFailed, domain.IntentStatusCanceled:
			if err := o.store.SetStatus(sub.ID, domain.SubscriptionCanceled, time.Time{}); err != nil {
				log.Printf("pending plan %s: cancel failed: %v", sub.ID, err)
			}
		}
	}
}

// RunExpirySweep settles pending plans and flips expired subscriptions on a
// fixed cadence until the context ends. Mirrors the outbox poller's loop
// shape.
func (o *Orchestrator) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("subscription expiry sweep started")
	for {
		select {
		case <-ctx.Done():
			log.Println("subscription expiry sweep stopped")
			return
		case <-ticker.C:
			o.SettlePending(ctx)
			if n := o.store.ExpireStale(o.now()); n > 0 {
				log.Printf("expired %d subscription(s)", n)
			}
		}
	}
}

// Package checkout drives a cart through payment to persisted orders. It is
// the only place in the service where the payment sheet, the intent gateway,
// the cart, and the order store meet.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/cart"
	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/payment"
)

// Result codes callers can branch on without string-matching messages.
const (
	CodeCheckoutInProgress  = "checkout_in_progress"
	CodeConfirmationTimeout = "confirmation_timeout"
	CodePendingVerification = "pending_verification"
)

// defaultTimeout bounds one whole checkout attempt, sheet included.
const defaultTimeout = 2 * time.Minute

// Gateway creates and re-fetches payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

// Methods resolves the user's saved instruments.
type Methods interface {
	List(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	GetDefault(ctx context.Context, userID string) (*domain.PaymentMethod, error)
}

// Carts reads the cart being purchased and clears it once orders are safe.
type Carts interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// Recorder persists order outcomes.
type Recorder interface {
	RecordPending(ctx context.Context, buyerID string, group domain.MerchantGroup, summary domain.CartSummary, intentID string) (*domain.Order, error)
	Complete(ctx context.Context, order *domain.Order) error
	Fail(ctx context.Context, orderID uuid.UUID) error
}

// Request selects the flow and, for the selective flow, which saved method
// funds it. MethodID is ignored by the other flows.
type Request struct {
	UserID     string
	CustomerID string
	Flow       domain.CheckoutFlow
	MethodID   string
}

// Orchestrator runs the three checkout flows. One instance serves all users;
// the sheet lock it shares with the subscription orchestrator guarantees a
// single confirmation sheet is ever in flight.
type Orchestrator struct {
	gateway  Gateway
	methods  Methods
	carts    Carts
	recorder Recorder
	lock     *payment.SheetLock
	sheet    payment.ConfirmationSheet
	timeout  time.Duration
}

func NewOrchestrator(gateway Gateway, methods Methods, carts Carts, recorder Recorder, lock *payment.SheetLock, sheet payment.ConfirmationSheet) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		methods:  methods,
		carts:    carts,
		recorder: recorder,
		lock:     lock,
		sheet:    sheet,
		timeout:  defaultTimeout,
	}
}

// Pay executes one checkout attempt end to end. Merchant groups are charged
// sequentially; the cart is cleared only after every order is persisted and
// its settlement confirmed.
func (o *Orchestrator) Pay(ctx context.Context, req Request) domain.PaymentResult {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	a := &attempt{orch: o, req: req}
	defer a.releaseLock()

	// The one-time flow always presents the sheet, so it claims the lock up
	// front; saved-method flows claim lazily, only if the processor demands
	// extra confirmation.
	if req.Flow == domain.FlowOneTime {
		if !o.lock.TryAcquire() {
			return domain.FailedResult(&domain.PaymentError{
				Kind:    domain.ErrKindValidation,
				Code:    CodeCheckoutInProgress,
				Message: "checkout already in progress",
			})
		}
		a.lockHeld = true
	}

	token, perr := a.resolveMethodToken(ctx)
	if perr != nil {
		return domain.FailedResult(perr)
	}

	userCart, err := o.carts.GetCart(ctx, req.UserID)
	if err != nil {
		return domain.FailedResult(domain.NetworkError("could not load cart", err))
	}
	if len(userCart.Items) == 0 {
		return domain.FailedResult(domain.ValidationError("cart is empty"))
	}

	summary := cart.ComputeSummary(userCart.Items)
	for _, group := range summary.MerchantGroups {
		if res, done := a.chargeGroup(ctx, group, token); done {
			return res
		}
	}

	// Every order is persisted and verified; the cart may go. A clear
	// failure is logged, not surfaced: the purchase itself succeeded.
	if err := o.carts.ClearCart(ctx, req.UserID); err != nil {
		log.Printf("checkout succeeded for user %s but cart clear failed: %v", req.UserID, err)
	}

	return domain.SucceededResult(a.orderIDs)
}

// attempt carries the mutable state of one Pay call.
type attempt struct {
	orch     *Orchestrator
	req      Request
	lockHeld bool
	orderIDs []string
}

func (a *attempt) releaseLock() {
	if a.lockHeld {
		a.orch.lock.Release()
		a.lockHeld = false
	}
}

// resolveMethodToken maps the flow to a processor token. Validation failures
// here happen before any gateway traffic.
func (a *attempt) resolveMethodToken(ctx context.Context) (string, *domain.PaymentError) {
	switch a.req.Flow {
	case domain.FlowOneTime:
		return "", nil

	case domain.FlowExpress:
		def, err := a.orch.methods.GetDefault(ctx, a.req.UserID)
		if err != nil {
			return "", domain.AsPaymentError(err)
		}
		if def == nil {
			return "", domain.ValidationError("no saved payment methods, add one or pay without saving")
		}
		return def.ProcessorToken, nil

	case domain.FlowSelective:
		if a.req.MethodID == "" {
			return "", domain.ValidationError("a payment method must be selected")
		}
		methods, err := a.orch.methods.List(ctx, a.req.UserID)
		if err != nil {
			return "", domain.AsPaymentError(err)
		}
		for i := range methods {
			if methods[i].ID == a.req.MethodID {
				return methods[i].ProcessorToken, nil
			}
		}
		return "", domain.ValidationError("selected payment method not found")

	default:
		return "", domain.ValidationError(fmt.Sprintf("unknown checkout flow %q", a.req.Flow))
	}
}

// chargeGroup runs the state machine for one merchant group. done=true means
// the whole checkout stops with res; done=false means move to the next group.
func (a *attempt) chargeGroup(ctx context.Context, group domain.MerchantGroup, token string) (res domain.PaymentResult, done bool) {
	state := domain.CheckoutStateIdle
	groupSummary := cart.ComputeSummary(group.Items)

	intent, err := a.orch.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:         groupSummary.Total,
		Description:    fmt.Sprintf("Order from %s", group.Merchant),
		CustomerID:     a.req.CustomerID,
		MethodToken:    token,
		Confirm:        token != "",
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		advance(&state, domain.CheckoutStateFailed)
		return a.failed(domain.AsPaymentError(err)), true
	}
	advance(&state, domain.CheckoutStateIntentCreated)

	switch intent.Status {
	case domain.IntentStatusSucceeded:
		// off-session charge settled immediately

	case domain.IntentStatusRequiresAction:
		advance(&state, domain.CheckoutStateActionRequired)
		if perr, canceled := a.confirmOnSheet(ctx, &state, intent); perr != nil || canceled {
			if canceled {
				return a.canceled(), true
			}
			return a.failed(perr), true
		}

	case domain.IntentStatusProcessing:
		// fall through to the pending path below after recording

	default:
		advance(&state, domain.CheckoutStateFailed)
		return a.failed(domain.ProcessorError("", "payment was not accepted", nil)), true
	}

	// Phase one done: the client observed success (or processing). Persist
	// the order before trusting anything further.
	order, rerr := a.orch.recorder.RecordPending(ctx, a.req.UserID, group, groupSummary, intent.ID)
	if rerr != nil {
		advance(&state, domain.CheckoutStateFailed)
		return a.failed(domain.NetworkError("could not record order", rerr)), true
	}
	a.orderIDs = append(a.orderIDs, order.ID.String())

	// Phase two: re-fetch the authoritative intent. Only a processor-side
	// succeeded promotes the order.
	verified, verr := a.orch.gateway.GetIntent(ctx, intent.ID)
	if verr != nil || verified.Status != domain.IntentStatusSucceeded {
		if verr != nil {
			log.Printf("order %s recorded but settlement check failed: %v", order.ID, verr)
		}
		advance(&state, domain.CheckoutStateFailed)
		// not retryable: the charge may have gone through, the recovery
		// poller settles it from the pending order
		return a.failed(&domain.PaymentError{
			Kind:    domain.ErrKindProcessor,
			Code:    CodePendingVerification,
			Message: "payment is being confirmed, check your orders shortly",
		}), true
	}

	if cerr := a.orch.recorder.Complete(ctx, order); cerr != nil {
		advance(&state, domain.CheckoutStateFailed)
		return a.failed(domain.NetworkError("could not finalize order", cerr)), true
	}
	advance(&state, domain.CheckoutStateSucceeded)

	return domain.PaymentResult{}, false
}

// confirmOnSheet drives the native confirmation for an intent that needs it.
// canceled=true is the user backing out, never an error.
func (a *attempt) confirmOnSheet(ctx context.Context, state *domain.CheckoutState, intent *domain.PaymentIntent) (perr *domain.PaymentError, canceled bool) {
	if !a.lockHeld {
		if !a.orch.lock.TryAcquire() {
			return &domain.PaymentError{
				Kind:    domain.ErrKindValidation,
				Code:    CodeCheckoutInProgress,
				Message: "checkout already in progress",
			}, false
		}
		a.lockHeld = true
	}

	if err := a.orch.sheet.Init(ctx, payment.SheetConfig{
		ClientSecret: intent.ClientSecret,
		Description:  "Confirm your payment",
		OwnerID:      a.req.UserID,
	}); err != nil {
		return domain.NetworkError("could not prepare payment sheet", err), false
	}

	advance(state, domain.CheckoutStateConfirming)
	err := a.orch.sheet.Present(ctx)
	switch {
	case err == nil:
		return nil, false
	case errors.Is(err, payment.ErrSheetCanceled):
		advance(state, domain.CheckoutStateCanceled)
		return nil, true
	case errors.Is(err, context.Canceled):
		advance(state, domain.CheckoutStateCanceled)
		return nil, true
	case errors.Is(err, payment.ErrSheetTimeout), errors.Is(err, context.DeadlineExceeded):
		// the attempt deadline expiring mid-sheet is a timeout, not the
		// user backing out
		return &domain.PaymentError{
			Kind:    domain.ErrKindProcessor,
			Code:    CodeConfirmationTimeout,
			Message: "payment confirmation timed out, no charge was completed",
			Err:     err,
		}, false
	default:
		return domain.NetworkError("payment sheet failed", err), false
	}
}

func (a *attempt) failed(perr *domain.PaymentError) domain.PaymentResult {
	res := domain.FailedResult(perr)
	res.OrderIDs = a.orderIDs
	return res
}

func (a *attempt) canceled() domain.PaymentResult {
	res := domain.CanceledResult()
	res.OrderIDs = a.orderIDs
	return res
}

// advance applies a transition, logging any step the state machine does not
// allow. Violations indicate a bug, not a user error, so flow continues.
func advance(state *domain.CheckoutState, to domain.CheckoutState) {
	if !domain.CanTransitionCheckout(*state, to) {
		log.Printf("illegal checkout transition %s -> %s", *state, to)
	}
	*state = to
}

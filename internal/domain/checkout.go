package domain

// CheckoutFlow selects which instrument funds the charge.
type CheckoutFlow string

const (
	FlowExpress   CheckoutFlow = "express"   // default saved method
	FlowSelective CheckoutFlow = "selective" // caller-chosen saved method
	FlowOneTime   CheckoutFlow = "one_time"  // no saved method, sheet always shown
)

type CheckoutState string

const (
	CheckoutStateIdle           CheckoutState = "IDLE"
	CheckoutStateIntentCreated  CheckoutState = "INTENT_CREATED"
	CheckoutStateActionRequired CheckoutState = "ACTION_REQUIRED"
	CheckoutStateConfirming     CheckoutState = "CONFIRMING"
	CheckoutStateSucceeded      CheckoutState = "SUCCEEDED"
	CheckoutStateFailed         CheckoutState = "FAILED"
	CheckoutStateCanceled       CheckoutState = "CANCELED"
)

// CanTransitionCheckout encodes the legal checkout state machine:
// Idle -> IntentCreated -> (ActionRequired -> Confirming)? -> terminal.
func CanTransitionCheckout(from, to CheckoutState) bool {
	switch from {
	case CheckoutStateIdle:
		return to == CheckoutStateIntentCreated || to == CheckoutStateFailed
	case CheckoutStateIntentCreated:
		return to == CheckoutStateActionRequired ||
			to == CheckoutStateSucceeded ||
			to == CheckoutStateFailed
	case CheckoutStateActionRequired:
		return to == CheckoutStateConfirming || to == CheckoutStateCanceled || to == CheckoutStateFailed
	case CheckoutStateConfirming:
		return to == CheckoutStateSucceeded ||
			to == CheckoutStateFailed ||
			to == CheckoutStateCanceled
	default:
		return false // terminal states
	}
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded || s == CheckoutStateFailed || s == CheckoutStateCanceled
}

func (s CheckoutState) String() string {
	return string(s)
}

// PaymentResult is what orchestrators hand to the caller. Errors never cross
// into the HTTP layer as raw errors; failures arrive here, classified.
type PaymentResult struct {
	Success  bool
	Canceled bool
	State    CheckoutState
	OrderIDs []string
	Error    *PaymentError
}

func SucceededResult(orderIDs []string) PaymentResult {
	return PaymentResult{Success: true, State: CheckoutStateSucceeded, OrderIDs: orderIDs}
}

func FailedResult(err *PaymentError) PaymentResult {
	return PaymentResult{State: CheckoutStateFailed, Error: err}
}

func CanceledResult() PaymentResult {
	return PaymentResult{Canceled: true, State: CheckoutStateCanceled}
}

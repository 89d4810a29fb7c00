package payment

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/repository"
	stripeapi "github.com/m41na/payment-agent-sub001/internal/stripe"
)

// MethodsRepo is the slice of the persistence surface the store needs.
type MethodsRepo interface {
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	InsertPaymentMethod(ctx context.Context, method *domain.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, userID, id string) error
	SwapDefaultPaymentMethod(ctx context.Context, userID, id string) error
}

// MethodStore mirrors the processor's saved instruments into the local record
// store. The processor stays the source of truth; local rows are a
// display-ready cache that must never outlive the processor-side token.
type MethodStore struct {
	repo   MethodsRepo
	client stripeapi.Client
	lock   *SheetLock
}

func NewMethodStore(repo MethodsRepo, client stripeapi.Client, lock *SheetLock) *MethodStore {
	return &MethodStore{repo: repo, client: client, lock: lock}
}

// List returns the user's methods, most recently added first.
func (s *MethodStore) List(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	methods, err := s.repo.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, domain.NetworkError("could not load payment methods", err)
	}
	return methods, nil
}

// AddViaSetupFlow obtains a setup credential, drives the confirmation sheet,
// and on success registers the resulting processor token. The first method a
// user saves becomes their default automatically. The sheet is shared with
// checkout, so the flow holds the sheet lock for its whole duration.
func (s *MethodStore) AddViaSetupFlow(ctx context.Context, userID, customerID string, sheet ConfirmationSheet) (*domain.PaymentMethod, error) {
	if !s.lock.TryAcquire() {
		return nil, &domain.PaymentError{
			Kind:    domain.ErrKindValidation,
			Code:    "checkout_in_progress",
			Message: "another payment is already in progress",
		}
	}
	defer s.lock.Release()

	si, err := s.client.CreateSetupIntent(customerID)
	if err != nil {
		return nil, MapProcessorError(err)
	}

	if err := sheet.Init(ctx, SheetConfig{ClientSecret: si.ClientSecret, Description: "Save payment method", OwnerID: userID}); err != nil {
		return nil, domain.NetworkError("could not prepare payment sheet", err)
	}
	if err := sheet.Present(ctx); err != nil {
		if errors.Is(err, ErrSheetCanceled) {
			return nil, &domain.PaymentError{Kind: domain.ErrKindValidation, Code: "canceled", Message: "setup was canceled"}
		}
		return nil, domain.NetworkError("payment sheet failed", err)
	}

	// re-fetch: the token only exists processor-side after confirmation
	confirmed, err := s.client.GetSetupIntent(si.ID)
	if err != nil {
		return nil, MapProcessorError(err)
	}
	if confirmed.PaymentMethod == nil {
		return nil, domain.ProcessorError("setup_incomplete", "the payment method was not saved", nil)
	}

	token := confirmed.PaymentMethod.ID
	pm, err := s.client.GetPaymentMethod(token)
	if err != nil {
		return nil, MapProcessorError(err)
	}

	existing, err := s.repo.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, domain.NetworkError("could not load payment methods", err)
	}

	method := &domain.PaymentMethod{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProcessorToken: token,
		IsDefault:      len(existing) == 0,
	}
	if pm.Card != nil {
		method.Brand = string(pm.Card.Brand)
		method.Last4 = pm.Card.Last4
		method.ExpiryMonth = int(pm.Card.ExpMonth)
		method.ExpiryYear = int(pm.Card.ExpYear)
	}

	if err := s.repo.InsertPaymentMethod(ctx, method); err != nil {
		if errors.Is(err, repository.ErrDuplicateToken) {
			return nil, domain.ValidationError("this card is already saved")
		}
		return nil, domain.NetworkError("could not save payment method", err)
	}

	return method, nil
}

// Remove detaches the processor-side token before deleting the local record.
// If detach fails the local row stays: deleting it would let the user believe
// an instrument is gone while it can still be charged.
func (s *MethodStore) Remove(ctx context.Context, userID, id string) error {
	method, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.client.DetachPaymentMethod(method.ProcessorToken); err != nil {
		return MapProcessorError(err)
	}

	if err := s.repo.DeletePaymentMethod(ctx, userID, id); err != nil {
		// token is already detached; the stale local row is harmless but log it
		log.Printf("payment method %s detached but local delete failed: %v", id, err)
		return domain.NetworkError("could not remove payment method", err)
	}
	return nil
}

// SetDefault swaps the default flag atomically; there is no moment with zero
// defaults. The processor is told first so a processor failure leaves local
// state untouched.
func (s *MethodStore) SetDefault(ctx context.Context, userID, customerID, id string) error {
	method, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}

	if customerID != "" {
		if err := s.client.SetDefaultPaymentMethod(customerID, method.ProcessorToken); err != nil {
			return MapProcessorError(err)
		}
	}

	if err := s.repo.SwapDefaultPaymentMethod(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrMethodNotFound) {
			return domain.ValidationError("payment method not found")
		}
		return domain.NetworkError("could not update default payment method", err)
	}
	return nil
}

// GetDefault returns the flagged default, falling back to first-by-recency on
// partial data; nil when the user has no saved methods.
func (s *MethodStore) GetDefault(ctx context.Context, userID string) (*domain.PaymentMethod, error) {
	methods, err := s.repo.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, domain.NetworkError("could not load payment methods", err)
	}
	if len(methods) == 0 {
		return nil, nil
	}

	for i := range methods {
		if methods[i].IsDefault {
			return &methods[i], nil
		}
	}
	return &methods[0], nil
}

func (s *MethodStore) find(ctx context.Context, userID, id string) (*domain.PaymentMethod, error) {
	methods, err := s.repo.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, domain.NetworkError("could not load payment methods", err)
	}
	for i := range methods {
		if methods[i].ID == id {
			return &methods[i], nil
		}
	}
	return nil, domain.ValidationError("payment method not found")
}

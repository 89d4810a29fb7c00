package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/payment"
)

// MethodService is the saved-instrument surface the endpoints expose.
type MethodService interface {
	List(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	AddViaSetupFlow(ctx context.Context, userID, customerID string, sheet payment.ConfirmationSheet) (*domain.PaymentMethod, error)
	Remove(ctx context.Context, userID, id string) error
	SetDefault(ctx context.Context, userID, customerID, id string) error
}

type MethodsHandler struct {
	svc     MethodService
	sheet   payment.ConfirmationSheet
	timeout time.Duration
}

func NewMethodsHandler(svc MethodService, sheet payment.ConfirmationSheet, timeout time.Duration) *MethodsHandler {
	return &MethodsHandler{svc: svc, sheet: sheet, timeout: timeout}
}

type PaymentMethodDTO struct {
	ID          string `json:"id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	IsDefault   bool   `json:"is_default"`
}

func toMethodDTO(m domain.PaymentMethod) PaymentMethodDTO {
	// ProcessorToken stays server-side
	return PaymentMethodDTO{
		ID:          m.ID,
		Brand:       m.Brand,
		Last4:       m.Last4,
		ExpiryMonth: m.ExpiryMonth,
		ExpiryYear:  m.ExpiryYear,
		IsDefault:   m.IsDefault,
	}
}

func (h *MethodsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	methods, err := h.svc.List(ctx, getUserID(r.Context()))
	if err != nil {
		respondPaymentError(w, err)
		return
	}

	out := make([]PaymentMethodDTO, len(methods))
	for i, m := range methods {
		out[i] = toMethodDTO(m)
	}
	respondJSON(w, http.StatusOK, out)
}

// Add runs the setup flow; the request stays open while the client confirms
// on the sheet, so no per-request timeout here.
func (h *MethodsHandler) Add(w http.ResponseWriter, r *http.Request) {
	method, err := h.svc.AddViaSetupFlow(r.Context(), getUserID(r.Context()), getCustomerID(r.Context()), h.sheet)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMethodDTO(*method))
}

func (h *MethodsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.Remove(ctx, getUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondPaymentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MethodsHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.SetDefault(ctx, getUserID(r.Context()), getCustomerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondPaymentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

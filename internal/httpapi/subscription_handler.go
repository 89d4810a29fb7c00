package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/subscription"
)

// SubscriptionService is the plan-purchase surface the endpoints expose.
type SubscriptionService interface {
	Purchase(ctx context.Context, req subscription.PurchaseRequest) (*domain.Subscription, domain.PaymentResult)
	Cancel(ctx context.Context, userID, subID string) error
	List(userID string) []*domain.Subscription
}

type SubscriptionHandler struct {
	svc     SubscriptionService
	catalog *subscription.Catalog
}

func NewSubscriptionHandler(svc SubscriptionService, catalog *subscription.Catalog) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, catalog: catalog}
}

type PurchaseRequestDTO struct {
	PlanID        string `json:"plan_id"`
	PaymentOption string `json:"payment_option,omitempty"`
}

type PurchaseResponseDTO struct {
	Status       string               `json:"status"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
	Error        *ErrorResponse       `json:"error,omitempty"`
}

func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.catalog.List()
	out := make([]domain.Plan, len(plans))
	for i, p := range plans {
		out[i] = p.Plan
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.List(getUserID(r.Context())))
}

// Purchase buys a plan; like checkout, the request stays open while the sheet
// is up.
func (h *SubscriptionHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PlanID == "" {
		respondError(w, http.StatusBadRequest, "invalid_plan_id", "plan_id is required")
		return
	}

	option := domain.PaymentOption(req.PaymentOption)
	switch option {
	case "", domain.PaymentOptionSaved, domain.PaymentOptionOneTime:
	default:
		respondError(w, http.StatusBadRequest, "invalid_payment_option", "payment_option must be saved or one_time")
		return
	}

	sub, result := h.svc.Purchase(r.Context(), subscription.PurchaseRequest{
		UserID:     getUserID(r.Context()),
		CustomerID: getCustomerID(r.Context()),
		PlanID:     req.PlanID,
		Option:     option,
	})

	switch {
	case result.Success:
		respondJSON(w, http.StatusCreated, PurchaseResponseDTO{Status: "succeeded", Subscription: sub})
	case result.Canceled:
		respondJSON(w, http.StatusOK, PurchaseResponseDTO{Status: "canceled"})
	default:
		respondJSON(w, paymentErrorStatus(result.Error), PurchaseResponseDTO{
			Status: "failed",
			Error: &ErrorResponse{
				Error: result.Error.Message,
				Kind:  string(result.Error.Kind),
				Code:  result.Error.Code,
			},
		})
	}
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondPaymentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m41na/payment-agent-sub001/internal/checkout"
	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// CheckoutRunner is the orchestrator surface the endpoint drives. The
// orchestrator owns its own timeout: the sheet can stay up far longer than
// any sane per-request deadline.
type CheckoutRunner interface {
	Pay(ctx context.Context, req checkout.Request) domain.PaymentResult
}

type CheckoutHandler struct {
	runner CheckoutRunner
}

func NewCheckoutHandler(runner CheckoutRunner) *CheckoutHandler {
	return &CheckoutHandler{runner: runner}
}

type CheckoutRequestDTO struct {
	Flow     string `json:"flow"`
	MethodID string `json:"method_id,omitempty"`
}

type CheckoutResponseDTO struct {
	Status   string         `json:"status"`
	OrderIDs []string       `json:"order_ids,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	flow := domain.CheckoutFlow(req.Flow)
	switch flow {
	case domain.FlowExpress, domain.FlowSelective, domain.FlowOneTime:
	default:
		respondError(w, http.StatusBadRequest, "invalid_flow", "flow must be express, selective or one_time")
		return
	}

	result := h.runner.Pay(r.Context(), checkout.Request{
		UserID:     getUserID(r.Context()),
		CustomerID: getCustomerID(r.Context()),
		Flow:       flow,
		MethodID:   req.MethodID,
	})

	switch {
	case result.Success:
		respondJSON(w, http.StatusOK, CheckoutResponseDTO{
			Status: "succeeded", OrderIDs: result.OrderIDs,
		})
	case result.Canceled:
		respondJSON(w, http.StatusOK, CheckoutResponseDTO{Status: "canceled", OrderIDs: result.OrderIDs})
	default:
		respondJSON(w, paymentErrorStatus(result.Error), CheckoutResponseDTO{
			Status:   "failed",
			OrderIDs: result.OrderIDs,
			Error: &ErrorResponse{
				Error: result.Error.Message,
				Kind:  string(result.Error.Kind),
				Code:  result.Error.Code,
			},
		})
	}
}

package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondPaymentError maps the error taxonomy onto HTTP statuses. The kind is
// always included so the client can pick retry behavior without parsing
// messages.
func respondPaymentError(w http.ResponseWriter, err error) {
	perr := domain.AsPaymentError(err)
	respondJSON(w, paymentErrorStatus(perr), ErrorResponse{
		Error: perr.Message,
		Kind:  string(perr.Kind),
		Code:  perr.Code,
	})
}

func paymentErrorStatus(perr *domain.PaymentError) int {
	switch perr.Kind {
	case domain.ErrKindValidation:
		return http.StatusBadRequest
	case domain.ErrKindAuth:
		return http.StatusUnauthorized
	case domain.ErrKindProcessor:
		return http.StatusPaymentRequired
	case domain.ErrKindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

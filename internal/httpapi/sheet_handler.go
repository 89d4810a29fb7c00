package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/m41na/payment-agent-sub001/internal/payment"
)

// SheetHandler is the client half of the confirmation bridge: the app polls
// for a pending presentation, drives the native sheet with its secret, then
// posts the outcome back.
type SheetHandler struct {
	bridge *payment.ClientBridge
}

func NewSheetHandler(bridge *payment.ClientBridge) *SheetHandler {
	return &SheetHandler{bridge: bridge}
}

type PendingSheetDTO struct {
	ClientSecret string `json:"client_secret"`
	Description  string `json:"description"`
}

type SheetCallbackDTO struct {
	Canceled bool   `json:"canceled"`
	Failure  string `json:"failure,omitempty"`
}

// GET /api/v1/sheet/pending
func (h *SheetHandler) Pending(w http.ResponseWriter, r *http.Request) {
	// scoped to the initiating user: nobody else sees the client secret
	cfg, ok := h.bridge.Pending(getUserID(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "no_pending_sheet", "no confirmation is waiting")
		return
	}
	respondJSON(w, http.StatusOK, PendingSheetDTO{
		ClientSecret: cfg.ClientSecret,
		Description:  cfg.Description,
	})
}

// POST /api/v1/sheet/callback
func (h *SheetHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req SheetCallbackDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if !h.bridge.Resolve(getUserID(r.Context()), payment.SheetOutcome{Canceled: req.Canceled, Failure: req.Failure}) {
		// late, duplicate, or foreign callback; reveal nothing either way
		respondError(w, http.StatusConflict, "no_pending_sheet", "no confirmation is waiting")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

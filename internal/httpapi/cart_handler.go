package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m41na/payment-agent-sub001/internal/cart"
	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// CartService is what the cart endpoints need from the cart layer.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	Summary(ctx context.Context, userID string) (domain.CartSummary, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
}

func NewCartHandler(svc CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{svc: svc, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID string                 `json:"product_id"`
	SellerID  string                 `json:"seller_id"`
	Quantity  int                    `json:"quantity"`
	UnitPrice int64                  `json:"unit_price"`
	Snapshot  domain.ProductSnapshot `json:"snapshot"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.svc.GetCart(ctx, getUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// GetSummary returns the totals checkout will charge, grouped by merchant.
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.svc.Summary(ctx, getUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not compute summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.UnitPrice <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must be positive minor units")
		return
	}

	item := domain.CartItem{
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Snapshot:  req.Snapshot,
		AddedAt:   time.Now(),
	}
	if err := h.svc.AddItem(ctx, getUserID(r.Context()), item); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not add item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.svc.UpdateQuantity(ctx, getUserID(r.Context()), productID, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrCartNotFound) || errors.Is(err, cart.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "item not in cart")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if err := h.svc.RemoveItem(ctx, getUserID(r.Context()), productID); err != nil {
		if errors.Is(err, cart.ErrCartNotFound) || errors.Is(err, cart.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "item not in cart")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not remove item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SignOut is the session hygiene hook: the cart (and its cached copy) must
// not survive into the next account on this device.
func (h *CartHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.ClearCart(ctx, getUserID(r.Context())); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

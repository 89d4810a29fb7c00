package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/repository"
)

// OrderReader is the read-only order surface the endpoints expose.
type OrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

// TransactionReader lists settled charges visible to the user.
type TransactionReader interface {
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

type OrdersHandler struct {
	orders       OrderReader
	transactions TransactionReader
	timeout      time.Duration
}

func NewOrdersHandler(orders OrderReader, transactions TransactionReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, transactions: transactions, timeout: timeout}
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListForBuyer(ctx, getUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load order")
		return
	}
	if order.BuyerID != getUserID(r.Context()) {
		// hide existence from non-owners
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ListTransactions shows charges where the user is buyer or seller.
func (h *OrdersHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	txs, err := h.transactions.ListTransactions(ctx, getUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load transactions")
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

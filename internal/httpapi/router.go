// Package httpapi is the service's HTTP surface: cart, checkout, saved
// methods, plans, orders and the sheet bridge, all JSON over chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Cart          *CartHandler
	Checkout      *CheckoutHandler
	Methods       *MethodsHandler
	Orders        *OrdersHandler
	Subscriptions *SubscriptionHandler
	Sheet         *SheetHandler
}

// NewRouter wires the whole API. No global timeout middleware: checkout and
// setup requests legitimately park on the confirmation sheet for minutes,
// short-lived handlers set their own deadlines.
func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Get("/summary", h.Cart.GetSummary)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})

		r.Post("/checkout", h.Checkout.Checkout)

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", h.Methods.List)
			r.Post("/", h.Methods.Add)
			r.Delete("/{id}", h.Methods.Remove)
			r.Put("/{id}/default", h.Methods.SetDefault)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.List)
			r.Get("/{id}", h.Orders.Get)
		})
		r.Get("/transactions", h.Orders.ListTransactions)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/plans", h.Subscriptions.ListPlans)
			r.Get("/", h.Subscriptions.List)
			r.Post("/", h.Subscriptions.Purchase)
			r.Delete("/{id}", h.Subscriptions.Cancel)
		})

		r.Route("/sheet", func(r chi.Router) {
			r.Get("/pending", h.Sheet.Pending)
			r.Post("/callback", h.Sheet.Callback)
		})

		r.Post("/signout", h.Cart.SignOut)
	})

	return r
}

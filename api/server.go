/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for back-office tooling
  5. requireAdmin: Bearer-token check on admin route groups

ROUTE GROUPS:
  /api/v1/carts/*      Cart lifecycle (device api key)
  /api/v1/tenants/*    Transactions, reversals, delivery, terminals
  /api/v1/seed         Demo data (admin)
  /health              Liveness and circuit state

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Cart lifecycle, authenticated per request by device api key
		r.Route("/carts", func(r chi.Router) {
			r.Post("/", h.CreateCart)
			r.Get("/", h.FindActiveCart)
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/cancel", h.CancelCart)
				r.Delete("/", h.CancelCart)
				r.Post("/lineItems", h.AddItem)
				r.Route("/lineItems/{lineNo}", func(r chi.Router) {
					r.Post("/cancel", h.CancelLine)
					r.Delete("/", h.CancelLine)
					r.Patch("/quantity", h.UpdateQuantity)
					r.Patch("/unitPrice", h.UpdateUnitPrice)
					r.Post("/discounts", h.AddLineDiscount)
				})
				r.Post("/discounts", h.AddCartDiscount)
				r.Post("/subtotal", h.Subtotal)
				r.Post("/payments", h.AddPayment)
				r.Post("/resume-item-entry", h.ResumeItemEntry)
				r.Post("/bill", h.Bill)
			})
		})

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			// Journal queries and reversals
			r.Route("/stores/{storeCode}/terminals", func(r chi.Router) {
				r.With(h.requireAdmin).Post("/", h.RegisterTerminal)
				r.Route("/{terminalNo}", func(r chi.Router) {
					r.Get("/transactions", h.ListTransactions)
					// Number-in-body aliases of the per-transaction routes
					r.Post("/transactions/void", h.VoidTransaction)
					r.Post("/transactions/returns", h.ReturnTransaction)
					r.Route("/transactions/{transactionNo}", func(r chi.Router) {
						r.Get("/", h.GetTransaction)
						r.Post("/void", h.VoidTransaction)
						r.Post("/return", h.ReturnTransaction)
						r.With(h.requireAdmin).Post("/delivery-status", h.AckTransactionDelivery)
					})

					// Session control
					r.Group(func(r chi.Router) {
						r.Use(h.requireAdmin)
						r.Post("/open", h.OpenTerminal)
						r.Post("/close", h.CloseTerminal)
						r.Post("/sign-in", h.SignIn)
						r.Post("/sign-out", h.SignOut)
					})
				})
			})

			// Event delivery tracking
			r.Route("/transactions/delivery-status/{eventId}", func(r chi.Router) {
				r.Get("/", h.GetDeliveryStatus)
				r.With(h.requireAdmin).Put("/ack", h.AckDelivery)
			})
		})

		// Demo seeding (development and demos only)
		r.With(h.requireAdmin).Post("/seed", h.Seed)
	})

	r.Get("/health", h.Health)

	return r
}

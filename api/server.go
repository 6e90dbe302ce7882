/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/accounts/*       Account management, ledger, schedules, accrual
  /api/families/*       Per-family listing, batch updates, summaries
  /api/health           Liveness probe

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}/terms", h.UpdateTerms)
			r.Get("/{id}/records", h.ListBalanceRecords)
			r.Post("/{id}/records", h.RecordBalance)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Get("/{id}/next-payment", h.GetNextPayment)
			r.Post("/{id}/accrue", h.ApplyUpdate)
		})

		// Family routes
		r.Route("/families/{familyID}", func(r chi.Router) {
			r.Get("/accounts", h.ListAccounts)
			r.Post("/run-updates", h.RunFamilyUpdates)
			r.Get("/debt-summaries", h.DebtSummaries)
		})

		r.Get("/health", h.Health)
	})

	return r
}

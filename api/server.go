/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in the request log
  2. Logger:     One structured (zap) line per request
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a local frontend

ROUTE GROUPS:
  /api/lifecycles/*      Transition graphs
  /api/quotes/*          Quote lifecycle
  /api/pending-orders/*  Approval lifecycle
  /api/budgets/*         Budget ledger, renewal and notification
  /api/scenarios/*       Fixture scenarios
  /metrics               Prometheus exposition (when a Gatherer is set)
  /healthz               Liveness, pings the store when Ping is set

SECURITY NOTE:
  No authentication middleware. This is a simulation harness.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/b2bsim/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger()))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/lifecycles/{name}", func(r chi.Router) {
			r.Get("/", h.GetLifecycle)
			r.Get("/available", h.GetAvailableTransitions)
		})

		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", h.ListQuotes)
			r.Post("/", h.CreateQuote)
			r.Get("/{id}", h.GetQuote)
			r.Post("/{id}/actions/{action}", h.ApplyQuoteAction)
			r.Post("/{id}/simulate/acceptance", h.SimulateQuoteAcceptance)
			r.Post("/{id}/simulate/negotiation", h.SimulateQuoteNegotiation)
			r.Get("/{id}/convertible", h.GetQuoteConvertible)
		})

		r.Route("/pending-orders", func(r chi.Router) {
			r.Get("/", h.ListPendingOrders)
			r.Post("/", h.CreatePendingOrder)
			r.Get("/{id}", h.GetPendingOrder)
			r.Post("/{id}/actions/{action}", h.ApplyPendingOrderAction)
			r.Post("/{id}/convert", h.ConvertPendingOrder)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
			r.Get("/{id}", h.GetBudget)
			r.Post("/{id}/usage", h.TrackUsage)
			r.Post("/{id}/fill", h.FillBudget)
			r.Post("/{id}/exceed", h.ExceedBudget)
			r.Get("/{id}/transactions", h.GetBudgetTransactions)
			r.Post("/{id}/renew", h.RenewBudget)
			r.Post("/{id}/simulate-time", h.SimulateBudgetTime)
			r.Post("/{id}/notification/simulate", h.SimulateNotification)
			r.Post("/{id}/notification/reset", h.ResetNotification)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/{name}/load", h.LoadScenario)
		})
	})

	if h.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// requestLogger logs method, path, status, duration and request id.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

/*
handlers.go - HTTP handlers for the workflow engine

PURPOSE:
  Exposes the quote and approval lifecycles, the budget service and the
  fixture scenarios over REST. Handlers parse the request, call exactly one
  domain operation and serialize its result.

ENDPOINTS:
  Lifecycles:
    GET    /api/lifecycles/{name}                   Graph, terminal states, Mermaid
    GET    /api/lifecycles/{name}/available?state=  Actions legal from state

  Quotes:
    GET    /api/quotes?state=                       List, optionally by state
    POST   /api/quotes                              Create (defaults to draft)
    GET    /api/quotes/{id}
    POST   /api/quotes/{id}/actions/{action}        Apply one transition
    POST   /api/quotes/{id}/simulate/acceptance     process -> sent -> accept
    POST   /api/quotes/{id}/simulate/negotiation    ... -> request_change -> ...
    GET    /api/quotes/{id}/convertible

  Pending orders:
    GET    /api/pending-orders?state=
    POST   /api/pending-orders
    GET    /api/pending-orders/{id}
    POST   /api/pending-orders/{id}/actions/{action}
    POST   /api/pending-orders/{id}/convert

  Budgets: see budgets.go. Scenarios: see scenarios.go.

  GET    /healthz                                   200 ok, 503 when Ping fails

ERROR HANDLING:
  - 400: Malformed body, unknown state or action, invalid amounts
  - 404: Entity or scenario not found
  - 409: Transition not defined, or its guard rejected the state
  - 422: Conversion gate (wrong terminal state, no line items)
  - 503: Entity lock not acquired in time
  - 500: Anything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/internal/presentation/graph"
	"github.com/warp/b2b-engine/quote"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Quotes    *quote.Lifecycle
	Approvals *approval.Lifecycle
	Budgets   *budget.Service

	// Fixtures are the stores scenarios load into. They must be the
	// stores behind the lifecycles and the budget service.
	Fixtures factory.Stores

	Logger *zap.Logger

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// Ping checks the backing store for /healthz. Nil means always healthy.
	Ping func(context.Context) error
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// LifecycleGraph flattens the named lifecycle: "quote" or "approval".
func LifecycleGraph(name string) (graph.Graph, bool) {
	switch name {
	case "quote":
		return graph.FromEngine(quote.Engine()), true
	case "approval":
		return graph.FromEngine(approval.Engine()), true
	}
	return graph.Graph{}, false
}

// GetLifecycle returns a lifecycle's graph. ?format=mermaid returns only
// the flowchart as text.
func (h *Handler) GetLifecycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, ok := LifecycleGraph(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Lifecycle not found", fmt.Errorf("unknown lifecycle %q", name))
		return
	}

	mermaid := graph.GenerateMermaid(g, nil)
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(mermaid))
		return
	}

	writeJSON(w, http.StatusOK, LifecycleDTO{Graph: g, Terminal: g.Terminal(), Mermaid: mermaid})
}

func (h *Handler) GetAvailableTransitions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state := r.URL.Query().Get("state")

	var actions []string
	switch name {
	case "quote":
		s, err := quote.ParseState(state)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		for _, a := range quote.Engine().AvailableTransitions(s) {
			actions = append(actions, string(a))
		}
	case "approval":
		s, err := approval.ParseState(state)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		for _, a := range approval.Engine().AvailableTransitions(s) {
			actions = append(actions, string(a))
		}
	default:
		writeError(w, http.StatusNotFound, "Lifecycle not found", fmt.Errorf("unknown lifecycle %q", name))
		return
	}

	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, http.StatusOK, AvailableDTO{Lifecycle: name, State: state, Actions: actions})
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	q, err := h.Quotes.Create(r.Context(), quote.Quote{
		ID:        generic.EntityID(req.ID),
		Name:      req.Name,
		State:     quote.State(req.State),
		LineItems: req.LineItems,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ListQuotes returns every quote, or those in ?state= when it is given.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	var state quote.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, err := quote.ParseState(raw)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		state = parsed
	}

	qs, err := h.Quotes.List(r.Context(), state)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if qs == nil {
		qs = []quote.Quote{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.Get(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) ApplyQuoteAction(w http.ResponseWriter, r *http.Request) {
	action := quote.Action(chi.URLParam(r, "action"))
	if !knownAction(quote.Engine().Actions(), action) {
		writeError(w, http.StatusBadRequest, "Unknown quote action", fmt.Errorf("%w: %q", generic.ErrInvalidInput, action))
		return
	}

	q, err := h.Quotes.Apply(r.Context(), entityID(r), action)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) SimulateQuoteAcceptance(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.SimulateFullAcceptanceWorkflow(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) SimulateQuoteNegotiation(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.SimulateNegotiationWorkflow(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetQuoteConvertible reports convertibility as data. A quote that fails
// the gate is a 200 with convertible=false and the reason.
func (h *Handler) GetQuoteConvertible(w http.ResponseWriter, r *http.Request) {
	id := entityID(r)
	ok, err := h.Quotes.CanConvertToOrder(r.Context(), id)
	if err != nil && !generic.IsGatingError(err) {
		h.writeDomainError(w, r, err)
		return
	}

	dto := ConvertibleDTO{ID: string(id), Convertible: ok}
	if err != nil {
		dto.Reason = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PENDING ORDER HANDLERS
// =============================================================================

func (h *Handler) CreatePendingOrder(w http.ResponseWriter, r *http.Request) {
	var req CreatePendingOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	p, err := h.Approvals.Create(r.Context(), approval.PendingOrder{
		ID:         generic.EntityID(req.ID),
		CustomerID: req.CustomerID,
		LineItems:  req.LineItems,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	var state approval.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, err := approval.ParseState(raw)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		state = parsed
	}

	ps, err := h.Approvals.List(r.Context(), state)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if ps == nil {
		ps = []approval.PendingOrder{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) GetPendingOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.Approvals.Get(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ApplyPendingOrderAction applies approve, decline or order. The body is
// optional and only read for approve (approver_id) and decline (reason).
func (h *Handler) ApplyPendingOrderAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := entityID(r)

	var (
		p   approval.PendingOrder
		err error
	)
	switch approval.Action(chi.URLParam(r, "action")) {
	case approval.ActionApprove:
		p, err = h.Approvals.Approve(ctx, id, req.ApproverID)
	case approval.ActionDecline:
		p, err = h.Approvals.Decline(ctx, id, req.Reason)
	case approval.ActionOrder:
		p, err = h.Approvals.Order(ctx, id)
	default:
		writeError(w, http.StatusBadRequest, "Unknown pending order action",
			fmt.Errorf("%w: %q", generic.ErrInvalidInput, chi.URLParam(r, "action")))
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ConvertPendingOrder(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Approvals.ConvertToOrder(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// Health answers 200 when the store responds to Ping, 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.logger().Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func entityID(r *http.Request) generic.EntityID {
	return generic.EntityID(chi.URLParam(r, "id"))
}

func knownAction[A ~string](actions []A, a A) bool {
	for _, known := range actions {
		if known == a {
			return true
		}
	}
	return false
}

// decodeBody writes a 400 and returns false on a malformed body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsTransitionError(err):
		return http.StatusConflict
	case generic.IsGatingError(err):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrLockNotAcquired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, http.StatusText(status), err)
}

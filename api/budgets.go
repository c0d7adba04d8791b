/*
budgets.go - Budget endpoints

ENDPOINTS:
  POST   /api/budgets                             Create
  GET    /api/budgets                             List with derived figures
  GET    /api/budgets/{id}
  POST   /api/budgets/{id}/usage                  Track {amount, description}
  POST   /api/budgets/{id}/fill                   Fill to {percentage}
  POST   /api/budgets/{id}/exceed                 Fill past amount by {excess}
  GET    /api/budgets/{id}/transactions           Usage history, oldest first
  POST   /api/budgets/{id}/renew                  Renew now, or {if_due: true}
  POST   /api/budgets/{id}/simulate-time          Renew through {until}
  POST   /api/budgets/{id}/notification/simulate  Fire the threshold if due
  POST   /api/budgets/{id}/notification/reset     Re-arm the latch

  Every budget response carries the summary (remaining, percentage,
  exceeded), the next renewal boundary and the notification verdict.
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
)

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var b budget.Budget
	if !decodeBody(w, r, &b) {
		return
	}

	created, err := h.Budgets.Create(r.Context(), b)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.budgetDTO(created))
}

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.Budgets.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		dtos[i] = h.budgetDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.Budgets.Get(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.budgetDTO(b))
}

func (h *Handler) TrackUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respondBudget(w, r, func(ctx context.Context, id generic.EntityID) (budget.Budget, error) {
		return h.Budgets.Track(ctx, id, req.Amount, req.Description)
	})
}

func (h *Handler) FillBudget(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respondBudget(w, r, func(ctx context.Context, id generic.EntityID) (budget.Budget, error) {
		return h.Budgets.FillToPercentage(ctx, id, req.Percentage)
	})
}

func (h *Handler) ExceedBudget(w http.ResponseWriter, r *http.Request) {
	var req ExceedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respondBudget(w, r, func(ctx context.Context, id generic.EntityID) (budget.Budget, error) {
		return h.Budgets.ExceedBy(ctx, id, req.Excess)
	})
}

func (h *Handler) GetBudgetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Budgets.Transactions(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []generic.UsageTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) RenewBudget(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := entityID(r)

	var (
		b       budget.Budget
		renewed = true
		err     error
	)
	if req.IfDue {
		b, renewed, err = h.Budgets.RenewIfDue(ctx, id)
	} else {
		b, err = h.Budgets.Renew(ctx, id)
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewResponse{Budget: h.budgetDTO(b), Renewed: renewed})
}

func (h *Handler) SimulateBudgetTime(w http.ResponseWriter, r *http.Request) {
	var req SimulateTimeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	until, err := generic.ParseDate(req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, "until must be YYYY-MM-DD or RFC 3339", err)
		return
	}

	b, renewals, err := h.Budgets.SimulateTimePassage(r.Context(), entityID(r), until)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SimulateTimeResponse{Budget: h.budgetDTO(b), Renewals: renewals})
}

func (h *Handler) SimulateNotification(w http.ResponseWriter, r *http.Request) {
	trigger, err := h.Budgets.SimulateTrigger(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}

func (h *Handler) ResetNotification(w http.ResponseWriter, r *http.Request) {
	h.respondBudget(w, r, h.Budgets.ResetNotification)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) respondBudget(w http.ResponseWriter, r *http.Request, op func(context.Context, generic.EntityID) (budget.Budget, error)) {
	b, err := op(r.Context(), entityID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.budgetDTO(b))
}

func (h *Handler) budgetDTO(b budget.Budget) BudgetDTO {
	dto := BudgetDTO{
		Budget:  b,
		Summary: h.Budgets.Ledger().Summarize(b),
	}
	if next, ok := h.Budgets.Scheduler().NextRenewal(b); ok {
		dto.NextRenewal = &next
	}
	if period, ok := h.Budgets.CurrentPeriod(b); ok {
		dto.CurrentPeriod = &period
	}
	dto.ShouldNotify, dto.NotifyReason = h.Budgets.Evaluator().Explain(b)
	return dto
}

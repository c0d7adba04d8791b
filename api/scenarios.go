/*
scenarios.go - Fixture scenario endpoints

PURPOSE:
  Loads the named fixture sets from the factory package into the running
  stores, so a scenario can be driven through the other endpoints.

USAGE VIA API:
  GET  /api/scenarios                  Name and description of each scenario
  POST /api/scenarios/{name}/load      Save its entities into the stores

  Loading upserts by id. Entities outside the scenario are left alone, and
  loading twice resets the scenario's entities to their fixture state.

ADDING NEW SCENARIOS:
  Add a document to factory/scenarios.go. Nothing here changes.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/b2b-engine/factory"
	"go.uber.org/zap"
)

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all := factory.Scenarios()
	dtos := make([]ScenarioDTO, len(all))
	for i, s := range all {
		dtos[i] = ScenarioDTO{Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	s, err := factory.LookupScenario(chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	fx, err := s.Fixtures()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := fx.Load(r.Context(), h.Fixtures); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := LoadScenarioResponse{
		Scenario:      s.Name,
		Budgets:       []string{},
		Quotes:        []string{},
		PendingOrders: []string{},
	}
	for _, b := range fx.Budgets {
		resp.Budgets = append(resp.Budgets, string(b.ID))
	}
	for _, q := range fx.Quotes {
		resp.Quotes = append(resp.Quotes, string(q.ID))
	}
	for _, p := range fx.PendingOrders {
		resp.PendingOrders = append(resp.PendingOrders, string(p.ID))
	}

	h.logger().Info("scenario loaded",
		zap.String("scenario", s.Name),
		zap.Int("budgets", len(resp.Budgets)),
		zap.Int("quotes", len(resp.Quotes)),
		zap.Int("pending_orders", len(resp.PendingOrders)))

	writeJSON(w, http.StatusOK, resp)
}

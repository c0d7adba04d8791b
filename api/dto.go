/*
dto.go - Request and response bodies for the HTTP API

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers around domain values
  - *DTO:      Response views that are not a domain type

  Domain types (quote.Quote, approval.PendingOrder, budget.Budget,
  budget.Trigger) already carry JSON tags and are returned as-is.
  Decimal amounts serialize as strings and accept strings or numbers.

VALIDATION:
  Done in handlers and the domain layer, not here.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/internal/presentation/graph"
)

// =============================================================================
// LIFECYCLES
// =============================================================================

type LifecycleDTO struct {
	graph.Graph
	Terminal []string `json:"terminal"`
	Mermaid  string   `json:"mermaid"`
}

type AvailableDTO struct {
	Lifecycle string   `json:"lifecycle"`
	State     string   `json:"state"`
	Actions   []string `json:"actions"`
}

// =============================================================================
// QUOTES AND PENDING ORDERS
// =============================================================================

type CreateQuoteRequest struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	State     string             `json:"state,omitempty"`
	LineItems []generic.LineItem `json:"line_items"`
}

type CreatePendingOrderRequest struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	LineItems  []generic.LineItem `json:"line_items"`
}

// ActionRequest carries the optional arguments of approve and decline.
type ActionRequest struct {
	ApproverID string `json:"approver_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type ConvertibleDTO struct {
	ID          string `json:"id"`
	Convertible bool   `json:"convertible"`
	Reason      string `json:"reason,omitempty"`
}

// =============================================================================
// BUDGETS
// =============================================================================

type UsageRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type FillRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
}

type ExceedRequest struct {
	Excess decimal.Decimal `json:"excess"`
}

type RenewRequest struct {
	// IfDue renews only when the budget's period has rolled over.
	IfDue bool `json:"if_due,omitempty"`
}

type SimulateTimeRequest struct {
	Until string `json:"until"`
}

// BudgetDTO is a budget with its derived figures.
type BudgetDTO struct {
	budget.Budget
	Summary       budget.Summary  `json:"summary"`
	NextRenewal   *time.Time      `json:"next_renewal,omitempty"`
	CurrentPeriod *generic.Period `json:"current_period,omitempty"`
	ShouldNotify  bool            `json:"should_notify"`
	NotifyReason  string          `json:"notify_reason"`
}

type RenewResponse struct {
	Budget  BudgetDTO `json:"budget"`
	Renewed bool      `json:"renewed"`
}

type SimulateTimeResponse struct {
	Budget   BudgetDTO   `json:"budget"`
	Renewals []time.Time `json:"renewals"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioResponse struct {
	Scenario      string   `json:"scenario"`
	Budgets       []string `json:"budgets"`
	Quotes        []string `json:"quotes"`
	PendingOrders []string `json:"pending_orders"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

/*
Package generic provides the core workflow engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms shared by the
  B2B lifecycles. Whether driving a quote through negotiation, a pending
  order through approval, or a budget through its renewal periods, the same
  transition engine, clock, cadence arithmetic and usage log apply.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntityID: Opaque identifier owned by the caller
  - LineItem: A priced quantity on a quote or pending order
  - Recipient: Someone to notify when a budget threshold is crossed
  - UsageTransaction: An append-only record of budget consumption

DESIGN PRINCIPLES:
  1. No I/O: Every engine operation is a pure computation over caller data
  2. Precision: Money uses decimal.Decimal, never float64
  3. Type Safety: Each lifecycle has closed State and Action types
  4. Injected Time: Nothing reads the wall clock directly; see Clock

SEE ALSO:
  - transition.go: The state machine
  - period.go: Renewal cadence arithmetic
  - ledger.go: Usage transaction log
  - store.go: Collaborator interfaces
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string

type TransactionID string

// =============================================================================
// LINE ITEMS - What a quote or pending order is made of
// =============================================================================

type LineItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total returns quantity * unit price.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// LineItemsTotal sums the totals of all items.
func LineItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Total())
	}
	return total
}

// =============================================================================
// RECIPIENTS
// =============================================================================

type Recipient struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// =============================================================================
// USAGE TRANSACTION - Atomic change to a budget's used amount
// =============================================================================

type UsageTransaction struct {
	ID           TransactionID   `json:"id"`
	BudgetID     EntityID        `json:"budget_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Timestamp    time.Time       `json:"timestamp"`
	RunningTotal decimal.Decimal `json:"running_total"`
}

// MustParseDecimal parses s and panics on malformed input.
// Intended for literals in fixtures and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

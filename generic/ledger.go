/*
ledger.go - Append-only usage transaction log

PURPOSE:
  Every amount tracked against a budget is recorded as a UsageTransaction
  carrying the running total after it was applied. The log explains how a
  budget's used amount got to its current value.

INVARIANTS:
  1. APPEND-ONLY: Entries are never edited.
  2. ORDERED: Transactions for a budget come back in append order.
  3. SCOPED: The log is test-scoped. It may be cleared for one budget or
     entirely, which is the only removal it supports.

IMPLEMENTATIONS:
  - generic/store/memory.go: Process-local log (default)
  - store/sqldb: SQL-backed log

SEE ALSO:
  - budget/ledger.go: Appends through Track
*/
package generic

import "context"

// UsageLog stores usage transactions per budget.
type UsageLog interface {
	// Append records tx. This is the ONLY write operation besides clearing.
	Append(ctx context.Context, tx UsageTransaction) error

	// Transactions returns the budget's entries in append order.
	Transactions(ctx context.Context, budgetID EntityID) ([]UsageTransaction, error)

	// Clear drops every entry for one budget.
	Clear(ctx context.Context, budgetID EntityID) error

	// ClearAll drops every entry.
	ClearAll(ctx context.Context) error
}

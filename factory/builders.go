package factory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/quote"
)

// =============================================================================
// BUDGETS
// =============================================================================

type BudgetOption func(*budget.Budget)

func WithName(name string) BudgetOption {
	return func(b *budget.Budget) { b.Name = name }
}

func WithUsed(used decimal.Decimal) BudgetOption {
	return func(b *budget.Budget) { b.UsedAmount = used }
}

func WithCadence(c generic.Cadence) BudgetOption {
	return func(b *budget.Budget) { b.RenewsType = c }
}

func WithLastRenewal(t time.Time) BudgetOption {
	return func(b *budget.Budget) { b.LastRenewal = &t }
}

// WithThreshold enables notifications at the given threshold.
func WithThreshold(typ budget.ThresholdType, value decimal.Decimal) BudgetOption {
	return func(b *budget.Budget) {
		b.Notify = true
		b.NotificationConfig = &budget.NotificationConfig{Type: typ, Value: value}
	}
}

// NewBudget returns an unused, non-renewing budget with notifications off
// unless opts say otherwise.
func NewBudget(id generic.EntityID, amount decimal.Decimal, opts ...BudgetOption) budget.Budget {
	b := budget.Budget{
		ID:         id,
		Amount:     amount,
		UsedAmount: decimal.Zero,
		RenewsType: generic.CadenceNone,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// =============================================================================
// QUOTES AND PENDING ORDERS
// =============================================================================

// Item builds a line item from a decimal string price. It panics on a
// malformed price.
func Item(sku string, quantity int64, unitPrice string) generic.LineItem {
	return generic.LineItem{SKU: sku, Quantity: quantity, UnitPrice: generic.MustParseDecimal(unitPrice)}
}

func NewQuote(id generic.EntityID, items ...generic.LineItem) quote.Quote {
	return quote.Quote{ID: id, State: quote.StateDraft, LineItems: items}
}

func NewPendingOrder(id generic.EntityID, items ...generic.LineItem) approval.PendingOrder {
	return approval.PendingOrder{ID: id, State: approval.StatePending, LineItems: items}
}

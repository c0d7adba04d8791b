package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// LEDGER - Usage accounting against a budget
// =============================================================================

// Ledger answers "how much is left" questions and records usage.
// Every tracked amount is appended to the UsageLog with the running total.
type Ledger struct {
	log  generic.UsageLog
	opts generic.Options
}

// NewLedger records usage into log.
func NewLedger(log generic.UsageLog, opts ...generic.Option) *Ledger {
	return &Ledger{log: log, opts: generic.NewOptions(opts...)}
}

// Remaining is amount minus used, negative once exceeded.
func (l *Ledger) Remaining(b Budget) decimal.Decimal {
	return b.Remaining()
}

// Exceeds reports whether spending amount would go past what remains.
func (l *Ledger) Exceeds(b Budget, amount decimal.Decimal) bool {
	return amount.GreaterThan(b.Remaining())
}

// UsagePercentage is used / amount * 100, zero for a zero amount.
func (l *Ledger) UsagePercentage(b Budget) decimal.Decimal {
	return b.UsagePercentage()
}

// Track appends a usage transaction and increments b.UsedAmount.
// It never rejects an overspend. Negative amounts are rejected because
// usage only grows between renewals.
func (l *Ledger) Track(ctx context.Context, b *Budget, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	tx, err := l.stage(*b, amount, description)
	if err != nil {
		return b.UsedAmount, err
	}
	return l.apply(ctx, b, tx)
}

// FillToPercentage tracks whatever is needed to bring usage up to pct of
// the budget amount. No-op when usage is already there.
func (l *Ledger) FillToPercentage(ctx context.Context, b *Budget, pct decimal.Decimal) (decimal.Decimal, error) {
	tx, err := l.stageFill(*b, pct)
	if err != nil {
		return b.UsedAmount, err
	}
	return l.apply(ctx, b, tx)
}

// ExceedBy tracks whatever is needed to bring usage to amount + excess.
func (l *Ledger) ExceedBy(ctx context.Context, b *Budget, excess decimal.Decimal) (decimal.Decimal, error) {
	tx, err := l.stageExceed(*b, excess)
	if err != nil {
		return b.UsedAmount, err
	}
	return l.apply(ctx, b, tx)
}

// stage builds the transaction for amount without recording it.
func (l *Ledger) stage(b Budget, amount decimal.Decimal, description string) (*generic.UsageTransaction, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: cannot track negative usage %s on budget %s", generic.ErrInvalidAmount, amount, b.ID)
	}
	return &generic.UsageTransaction{
		ID:           generic.TransactionID(uuid.NewString()),
		BudgetID:     b.ID,
		Amount:       amount,
		Description:  description,
		Timestamp:    l.opts.Clock.Now(),
		RunningTotal: b.UsedAmount.Add(amount),
	}, nil
}

func (l *Ledger) stageFill(b Budget, pct decimal.Decimal) (*generic.UsageTransaction, error) {
	target := b.Amount.Mul(pct).Div(hundred)
	return l.stageTo(b, target, fmt.Sprintf("fill to %s%%", pct))
}

func (l *Ledger) stageExceed(b Budget, excess decimal.Decimal) (*generic.UsageTransaction, error) {
	target := b.Amount.Add(excess)
	return l.stageTo(b, target, fmt.Sprintf("exceed by %s", excess))
}

// stageTo returns nil when usage already reaches target.
func (l *Ledger) stageTo(b Budget, target decimal.Decimal, description string) (*generic.UsageTransaction, error) {
	delta := target.Sub(b.UsedAmount)
	if !delta.IsPositive() {
		return nil, nil
	}
	return l.stage(b, delta, description)
}

func (l *Ledger) apply(ctx context.Context, b *Budget, tx *generic.UsageTransaction) (decimal.Decimal, error) {
	if tx == nil {
		return b.UsedAmount, nil
	}
	if err := l.commit(ctx, *tx); err != nil {
		return b.UsedAmount, err
	}
	b.UsedAmount = tx.RunningTotal
	return b.UsedAmount, nil
}

// commit appends tx to the usage log.
func (l *Ledger) commit(ctx context.Context, tx generic.UsageTransaction) error {
	if err := l.log.Append(ctx, tx); err != nil {
		return fmt.Errorf("record usage on budget %s: %w", tx.BudgetID, err)
	}

	l.opts.Observer.ObserveUsage(tx.BudgetID, tx.Amount)
	l.opts.Logger.Debug("budget usage tracked",
		zap.String("budget_id", string(tx.BudgetID)),
		zap.String("amount", tx.Amount.String()),
		zap.String("used_amount", tx.RunningTotal.String()),
		zap.String("description", tx.Description))
	return nil
}

// Transactions lists the usage of one budget in append order.
func (l *Ledger) Transactions(ctx context.Context, budgetID generic.EntityID) ([]generic.UsageTransaction, error) {
	return l.log.Transactions(ctx, budgetID)
}

// Clear drops the usage log of one budget. UsedAmount is not touched.
func (l *Ledger) Clear(ctx context.Context, budgetID generic.EntityID) error {
	return l.log.Clear(ctx, budgetID)
}

// ClearAll drops every budget's usage log.
func (l *Ledger) ClearAll(ctx context.Context) error {
	return l.log.ClearAll(ctx)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is a read-only view of a budget's consumption.
type Summary struct {
	BudgetID        generic.EntityID `json:"budget_id"`
	Amount          decimal.Decimal  `json:"amount"`
	UsedAmount      decimal.Decimal  `json:"used_amount"`
	Remaining       decimal.Decimal  `json:"remaining"`
	UsagePercentage decimal.Decimal  `json:"usage_percentage"`
	Exceeded        bool             `json:"exceeded"`
}

// Summarize reports b's consumption.
func (l *Ledger) Summarize(b Budget) Summary {
	return Summary{
		BudgetID:        b.ID,
		Amount:          b.Amount,
		UsedAmount:      b.UsedAmount,
		Remaining:       b.Remaining(),
		UsagePercentage: b.UsagePercentage(),
		Exceeded:        b.IsExceeded(),
	}
}

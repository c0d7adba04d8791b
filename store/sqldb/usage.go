package sqldb

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
)

// =============================================================================
// USAGE LOG (generic.UsageLog)
// =============================================================================

// UsageLog is the append-only usage_transactions table. Clear and ClearAll
// are the only deletes; there are no updates.
type UsageLog struct {
	s *Store
}

func NewUsageLog(s *Store) *UsageLog {
	return &UsageLog{s: s}
}

func (l *UsageLog) Append(ctx context.Context, tx generic.UsageTransaction) error {
	_, err := l.s.exec(ctx, `
		INSERT INTO usage_transactions (id, budget_id, amount, description, occurred_at, running_total)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.BudgetID), tx.Amount.String(), tx.Description,
		formatTime(tx.Timestamp), tx.RunningTotal.String())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate usage transaction %s", generic.ErrInvalidInput, tx.ID)
		}
		return fmt.Errorf("failed to append usage transaction: %w", err)
	}
	return nil
}

// Transactions returns a budget's usage in append order.
func (l *UsageLog) Transactions(ctx context.Context, budgetID generic.EntityID) ([]generic.UsageTransaction, error) {
	rows, err := l.s.query(ctx, `
		SELECT id, budget_id, amount, description, occurred_at, running_total
		FROM usage_transactions
		WHERE budget_id = ?
		ORDER BY seq`, string(budgetID))
	if err != nil {
		return nil, fmt.Errorf("list usage for budget %s: %w", budgetID, err)
	}
	defer rows.Close()

	result := []generic.UsageTransaction{}
	for rows.Next() {
		var id, bid, amount, desc, at, total string
		if err := rows.Scan(&id, &bid, &amount, &desc, &at, &total); err != nil {
			return nil, err
		}
		tx := generic.UsageTransaction{
			ID:          generic.TransactionID(id),
			BudgetID:    generic.EntityID(bid),
			Description: desc,
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("usage %s amount: %w", id, err)
		}
		if tx.RunningTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("usage %s running total: %w", id, err)
		}
		if tx.Timestamp, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("usage %s timestamp: %w", id, err)
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (l *UsageLog) Clear(ctx context.Context, budgetID generic.EntityID) error {
	if _, err := l.s.exec(ctx, `DELETE FROM usage_transactions WHERE budget_id = ?`, string(budgetID)); err != nil {
		return fmt.Errorf("clear usage for budget %s: %w", budgetID, err)
	}
	return nil
}

func (l *UsageLog) ClearAll(ctx context.Context) error {
	if _, err := l.s.exec(ctx, `DELETE FROM usage_transactions`); err != nil {
		return fmt.Errorf("clear usage: %w", err)
	}
	return nil
}

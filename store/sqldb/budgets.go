package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
)

// =============================================================================
// BUDGET STORE (generic.EntityStore[budget.Budget])
// =============================================================================

// BudgetStore keeps budgets in typed columns so amounts and renewal dates
// can be inspected with plain SQL.
type BudgetStore struct {
	s *Store
}

func NewBudgetStore(s *Store) *BudgetStore {
	return &BudgetStore{s: s}
}

const budgetColumns = `id, name, amount, used_amount, renews_type, last_renewal,
	notify, sent, threshold_type, threshold_value`

func (bs *BudgetStore) Load(ctx context.Context, id generic.EntityID) (budget.Budget, error) {
	row := bs.s.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, string(id))
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.Budget{}, &generic.NotFoundError{Kind: "budget", ID: id}
	}
	if err != nil {
		return budget.Budget{}, fmt.Errorf("load budget %s: %w", id, err)
	}
	return b, nil
}

func (bs *BudgetStore) Save(ctx context.Context, id generic.EntityID, b budget.Budget) error {
	var lastRenewal sql.NullString
	if b.LastRenewal != nil {
		lastRenewal = nullString(formatTime(*b.LastRenewal))
	}
	var thresholdType, thresholdValue sql.NullString
	if cfg := b.NotificationConfig; cfg != nil {
		thresholdType = sql.NullString{String: string(cfg.Type), Valid: true}
		thresholdValue = sql.NullString{String: cfg.Value.String(), Valid: true}
	}

	_, err := bs.s.exec(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			used_amount = excluded.used_amount,
			renews_type = excluded.renews_type,
			last_renewal = excluded.last_renewal,
			notify = excluded.notify,
			sent = excluded.sent,
			threshold_type = excluded.threshold_type,
			threshold_value = excluded.threshold_value`,
		string(id), b.Name, b.Amount.String(), b.UsedAmount.String(), string(b.RenewsType),
		lastRenewal, b.Notify, b.Sent, thresholdType, thresholdValue)
	if err != nil {
		return fmt.Errorf("save budget %s: %w", id, err)
	}
	return nil
}

// List returns budgets in first-save order.
func (bs *BudgetStore) List(ctx context.Context) ([]budget.Budget, error) {
	rows, err := bs.s.query(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var result []budget.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(row scanner) (budget.Budget, error) {
	var (
		id, name, amount, used, renews string
		lastRenewal                    sql.NullString
		notify, sent                   bool
		thresholdType, thresholdValue  sql.NullString
	)
	if err := row.Scan(&id, &name, &amount, &used, &renews, &lastRenewal,
		&notify, &sent, &thresholdType, &thresholdValue); err != nil {
		return budget.Budget{}, err
	}

	b := budget.Budget{
		ID:         generic.EntityID(id),
		Name:       name,
		RenewsType: generic.Cadence(renews),
		Notify:     notify,
		Sent:       sent,
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return budget.Budget{}, fmt.Errorf("budget %s amount: %w", id, err)
	}
	if b.UsedAmount, err = decimal.NewFromString(used); err != nil {
		return budget.Budget{}, fmt.Errorf("budget %s used amount: %w", id, err)
	}
	if lastRenewal.Valid {
		t, err := parseTime(lastRenewal.String)
		if err != nil {
			return budget.Budget{}, fmt.Errorf("budget %s last renewal: %w", id, err)
		}
		b.LastRenewal = &t
	}
	if thresholdType.Valid {
		value, err := decimal.NewFromString(thresholdValue.String)
		if err != nil {
			return budget.Budget{}, fmt.Errorf("budget %s threshold: %w", id, err)
		}
		b.NotificationConfig = &budget.NotificationConfig{
			Type:  budget.ThresholdType(thresholdType.String),
			Value: value,
		}
	}
	return b, nil
}

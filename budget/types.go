/*
Package budget tracks spending against B2B budgets over time.

PURPOSE:
  A Budget has a fixed Amount and a UsedAmount that grows as usage is
  tracked. Usage resets on each renewal (daily, weekly, monthly, yearly or
  never), and a one-shot notification fires once usage crosses a threshold.

COMPONENTS:
  Ledger:    remaining / percentage / exceeded queries and usage tracking
  Scheduler: renewal due-ness, next boundary, time-passage simulation
  Evaluator: threshold evaluation and the "already sent" latch
  Service:   the three above, loading and storing budgets by id

OVER-BUDGET:
  UsedAmount may exceed Amount. That is a valid, detectable state
  (IsExceeded), not an error. Tracking never rejects an overspend; callers
  that want to block it check Exceeds first.

LATCH AND RENEWAL:
  Sent suppresses repeat notifications until re-armed. Renewal re-arms it by
  calling ResetNotification, the same operation callers use manually.
*/
package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// NOTIFICATION CONFIG
// =============================================================================

type ThresholdType string

const (
	ThresholdPercentage ThresholdType = "percentage"
	ThresholdAmount     ThresholdType = "amount"
)

// Known reports whether the type is one the evaluator understands.
func (t ThresholdType) Known() bool {
	return t == ThresholdPercentage || t == ThresholdAmount
}

type NotificationConfig struct {
	Type  ThresholdType   `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// =============================================================================
// BUDGET
// =============================================================================

type Budget struct {
	ID                 generic.EntityID    `json:"id"`
	Name               string              `json:"name,omitempty"`
	Amount             decimal.Decimal     `json:"amount"`
	UsedAmount         decimal.Decimal     `json:"used_amount"`
	RenewsType         generic.Cadence     `json:"renews_type"`
	LastRenewal        *time.Time          `json:"last_renewal,omitempty"`
	Notify             bool                `json:"notify"`
	Sent               bool                `json:"sent"`
	NotificationConfig *NotificationConfig `json:"notification_config,omitempty"`
}

// Remaining is Amount - UsedAmount and may be negative.
func (b Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.UsedAmount)
}

// UsagePercentage is UsedAmount / Amount * 100, or zero for a zero Amount.
func (b Budget) UsagePercentage() decimal.Decimal {
	if b.Amount.IsZero() {
		return decimal.Zero
	}
	return b.UsedAmount.Div(b.Amount).Mul(hundred)
}

// IsExceeded reports UsedAmount > Amount.
func (b Budget) IsExceeded() bool {
	return b.UsedAmount.GreaterThan(b.Amount)
}

// ResetNotification re-arms the one-shot latch.
func (b *Budget) ResetNotification() {
	b.Sent = false
}

// Validate checks the fields a budget cannot function without.
func (b Budget) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: budget id is required", generic.ErrInvalidInput)
	}
	if b.Amount.IsNegative() {
		return fmt.Errorf("%w: budget %s amount %s is negative", generic.ErrInvalidAmount, b.ID, b.Amount)
	}
	if b.UsedAmount.IsNegative() {
		return fmt.Errorf("%w: budget %s used amount %s is negative", generic.ErrInvalidAmount, b.ID, b.UsedAmount)
	}
	if _, err := generic.ParseCadence(string(b.RenewsType)); err != nil {
		return fmt.Errorf("budget %s: %w", b.ID, err)
	}
	return nil
}

// Clone returns a copy that shares no pointers with b.
func (b Budget) Clone() Budget {
	c := b
	if b.LastRenewal != nil {
		t := *b.LastRenewal
		c.LastRenewal = &t
	}
	if b.NotificationConfig != nil {
		cfg := *b.NotificationConfig
		c.NotificationConfig = &cfg
	}
	return c
}

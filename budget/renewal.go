/*
renewal.go - Budget renewal cadence

DUE-NESS:
  A budget is due for renewal when "now" falls in a different calendar
  period than its last renewal:

    none     -> never due
    no last  -> always due
    daily    -> (year, month, day) differ
    weekly   -> (ISO year, ISO week) differ
    monthly  -> (year, month) differ
    yearly   -> (year) differ

NEXT BOUNDARY:
  The last renewal (or the clock's now, when there is none) advanced by
  exactly one cadence unit. Month and year steps clamp to the month end,
  so a budget renewed Jan 31 next renews Feb 29.

TIME PASSAGE:
  SimulateTimePassage walks boundaries one unit at a time and renews at
  each one that is <= the target. It never jumps several periods at once:
  every renewal resets usage and moves LastRenewal. Boundaries are counted
  from the walk's starting anchor, so a month-end anchor is not lost to
  February: Jan 31 -> Feb 29 -> Mar 31.

  Example: monthly, last renewal 2024-01-01, target 2024-04-15
    -> renewals at 2024-02-01, 2024-03-01, 2024-04-01
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

// Scheduler decides when budgets renew and applies renewals.
type Scheduler struct {
	opts generic.Options
}

// NewScheduler reads now from the options clock.
func NewScheduler(opts ...generic.Option) *Scheduler {
	return &Scheduler{opts: generic.NewOptions(opts...)}
}

// IsDue reports whether now falls in a different calendar period than the
// last renewal.
func (s *Scheduler) IsDue(b Budget, now time.Time) bool {
	if !b.RenewsType.Renews() {
		return false
	}
	if b.LastRenewal == nil {
		return true
	}
	return !b.RenewsType.SamePeriod(*b.LastRenewal, now)
}

// NextRenewal returns false for a budget that never renews.
func (s *Scheduler) NextRenewal(b Budget) (time.Time, bool) {
	base := s.opts.Clock.Now()
	if b.LastRenewal != nil {
		base = *b.LastRenewal
	}
	return b.RenewsType.Advance(base)
}

// CurrentPeriod is the calendar period containing now for the budget's
// cadence. False for a budget that never renews.
func (s *Scheduler) CurrentPeriod(b Budget, now time.Time) (generic.Period, bool) {
	return b.RenewsType.PeriodFor(now)
}

// Renew resets usage, records now as the last renewal and re-arms the
// notification latch. It does not check IsDue.
func (s *Scheduler) Renew(b *Budget, now time.Time) {
	b.UsedAmount = decimal.Zero
	renewedAt := now
	b.LastRenewal = &renewedAt
	b.ResetNotification()

	s.opts.Observer.ObserveRenewal(b.ID)
	s.opts.Logger.Info("budget renewed",
		zap.String("budget_id", string(b.ID)),
		zap.String("cadence", string(b.RenewsType)),
		zap.Time("renewed_at", now))
}

// RenewIfDue renews only when IsDue; it reports whether it did.
func (s *Scheduler) RenewIfDue(b *Budget, now time.Time) bool {
	if !s.IsDue(*b, now) {
		return false
	}
	s.Renew(b, now)
	return true
}

// SimulateTimePassage renews at every cadence boundary up to and including
// target and returns the renewal instants in order.
func (s *Scheduler) SimulateTimePassage(b *Budget, target time.Time) []time.Time {
	anchor := s.opts.Clock.Now()
	if b.LastRenewal != nil {
		anchor = *b.LastRenewal
	}

	var renewals []time.Time
	for n := 1; ; n++ {
		next, ok := b.RenewsType.AdvanceN(anchor, n)
		if !ok || next.After(target) {
			return renewals
		}
		s.Renew(b, next)
		renewals = append(renewals, next)
	}
}

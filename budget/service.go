package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// SERVICE - Budgets by id
// =============================================================================

// Service loads a budget, runs one Ledger / Scheduler / Evaluator operation
// on it and stores the result. With a Locker configured each mutation holds
// the budget's lock for the whole load-modify-save cycle.
type Service struct {
	store     generic.EntityStore[Budget]
	ledger    *Ledger
	scheduler *Scheduler
	evaluator *Evaluator
	opts      generic.Options
}

// NewService builds the ledger, scheduler and evaluator from the same options.
func NewService(store generic.EntityStore[Budget], log generic.UsageLog, recipients generic.RecipientResolver, opts ...generic.Option) *Service {
	return &Service{
		store:     store,
		ledger:    NewLedger(log, opts...),
		scheduler: NewScheduler(opts...),
		evaluator: NewEvaluator(recipients, opts...),
		opts:      generic.NewOptions(opts...),
	}
}

// Collaborators, for read-only helpers such as Summarize.
func (s *Service) Ledger() *Ledger       { return s.ledger }
func (s *Service) Scheduler() *Scheduler { return s.scheduler }
func (s *Service) Evaluator() *Evaluator { return s.evaluator }

// Create validates and stores a new budget. An empty cadence means none.
func (s *Service) Create(ctx context.Context, b Budget) (Budget, error) {
	if b.RenewsType == "" {
		b.RenewsType = generic.CadenceNone
	}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	if b.NotificationConfig != nil && !b.NotificationConfig.Type.Known() {
		return Budget{}, fmt.Errorf("%w: budget %s threshold type %q", generic.ErrInvalidInput, b.ID, b.NotificationConfig.Type)
	}
	b = b.Clone()
	if err := s.store.Save(ctx, b.ID, b); err != nil {
		return Budget{}, fmt.Errorf("save budget %s: %w", b.ID, err)
	}
	s.opts.Logger.Info("budget created",
		zap.String("budget_id", string(b.ID)),
		zap.String("amount", b.Amount.String()),
		zap.String("cadence", string(b.RenewsType)))
	return b, nil
}

// Get loads one budget, generic.ErrNotFound when unknown.
func (s *Service) Get(ctx context.Context, id generic.EntityID) (Budget, error) {
	return s.store.Load(ctx, id)
}

// List returns every stored budget.
func (s *Service) List(ctx context.Context) ([]Budget, error) {
	return s.store.List(ctx)
}

// Summary loads the budget and summarizes its consumption.
func (s *Service) Summary(ctx context.Context, id generic.EntityID) (Summary, error) {
	b, err := s.store.Load(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return s.ledger.Summarize(b), nil
}

// =============================================================================
// USAGE
// =============================================================================

// Track records amount against the budget. The budget is saved first and
// the usage log appended second; a failed append puts the stored budget back.
func (s *Service) Track(ctx context.Context, id generic.EntityID, amount decimal.Decimal, description string) (Budget, error) {
	return s.record(ctx, id, func(b Budget) (*generic.UsageTransaction, error) {
		return s.ledger.stage(b, amount, description)
	})
}

// FillToPercentage tracks up to pct of the amount. Nothing is written when
// usage is already there.
func (s *Service) FillToPercentage(ctx context.Context, id generic.EntityID, pct decimal.Decimal) (Budget, error) {
	return s.record(ctx, id, func(b Budget) (*generic.UsageTransaction, error) {
		return s.ledger.stageFill(b, pct)
	})
}

// ExceedBy tracks up to amount + excess.
func (s *Service) ExceedBy(ctx context.Context, id generic.EntityID, excess decimal.Decimal) (Budget, error) {
	return s.record(ctx, id, func(b Budget) (*generic.UsageTransaction, error) {
		return s.ledger.stageExceed(b, excess)
	})
}

// Transactions lists the usage log of a known budget.
func (s *Service) Transactions(ctx context.Context, id generic.EntityID) ([]generic.UsageTransaction, error) {
	if _, err := s.store.Load(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx, id)
}

// =============================================================================
// RENEWAL
// =============================================================================

// Renew resets the budget unconditionally at the clock's now.
func (s *Service) Renew(ctx context.Context, id generic.EntityID) (Budget, error) {
	return s.mutate(ctx, id, func(b *Budget) error {
		s.scheduler.Renew(b, s.opts.Clock.Now())
		return nil
	})
}

// RenewIfDue renews only when due and reports whether it did.
func (s *Service) RenewIfDue(ctx context.Context, id generic.EntityID) (Budget, bool, error) {
	var renewed bool
	b, err := s.mutate(ctx, id, func(b *Budget) error {
		renewed = s.scheduler.RenewIfDue(b, s.opts.Clock.Now())
		if !renewed {
			return errUnchanged
		}
		return nil
	})
	return b, renewed, err
}

// SimulateTimePassage walks the budget's renewal boundaries up to target.
func (s *Service) SimulateTimePassage(ctx context.Context, id generic.EntityID, target time.Time) (Budget, []time.Time, error) {
	var renewals []time.Time
	b, err := s.mutate(ctx, id, func(b *Budget) error {
		renewals = s.scheduler.SimulateTimePassage(b, target)
		if len(renewals) == 0 {
			return errUnchanged
		}
		return nil
	})
	return b, renewals, err
}

// CurrentPeriod is the calendar period the clock's now falls in for b.
func (s *Service) CurrentPeriod(b Budget) (generic.Period, bool) {
	return s.scheduler.CurrentPeriod(b, s.opts.Clock.Now())
}

// RenewDue renews every stored budget that is due and returns their ids.
// A failure on one budget is logged and does not stop the others; the
// first such error is returned.
func (s *Service) RenewDue(ctx context.Context) ([]generic.EntityID, error) {
	budgets, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	now := s.opts.Clock.Now()
	var renewed []generic.EntityID
	var firstErr error
	for _, b := range budgets {
		if !s.scheduler.IsDue(b, now) {
			continue
		}
		_, ok, err := s.RenewIfDue(ctx, b.ID)
		if err != nil {
			s.opts.Logger.Error("budget renewal failed",
				zap.String("budget_id", string(b.ID)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			renewed = append(renewed, b.ID)
		}
	}
	return renewed, firstErr
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// ShouldNotify evaluates the stored budget and gives the reason.
func (s *Service) ShouldNotify(ctx context.Context, id generic.EntityID) (bool, string, error) {
	b, err := s.store.Load(ctx, id)
	if err != nil {
		return false, "", err
	}
	ok, reason := s.evaluator.Explain(b)
	return ok, reason, nil
}

// SimulateTrigger stores the latched budget only when the notification fired.
func (s *Service) SimulateTrigger(ctx context.Context, id generic.EntityID) (Trigger, error) {
	var trigger Trigger
	_, err := s.mutate(ctx, id, func(b *Budget) error {
		t, err := s.evaluator.SimulateTrigger(ctx, b)
		trigger = t
		if err == nil && !t.Triggered {
			return errUnchanged
		}
		return err
	})
	return trigger, err
}

// ResetNotification re-arms the notification latch.
func (s *Service) ResetNotification(ctx context.Context, id generic.EntityID) (Budget, error) {
	return s.mutate(ctx, id, func(b *Budget) error {
		b.ResetNotification()
		return nil
	})
}

// =============================================================================
// INTERNAL
// =============================================================================

// errUnchanged tells mutate that fn left the budget as it was.
var errUnchanged = errors.New("budget unchanged")

// mutate runs fn on a private copy of the stored budget and saves the copy
// when fn succeeds. fn returning errUnchanged skips the save.
func (s *Service) mutate(ctx context.Context, id generic.EntityID, fn func(*Budget) error) (Budget, error) {
	var result Budget
	err := s.opts.Locked(ctx, "budget:"+string(id), func() error {
		stored, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		result = stored
		b := stored.Clone()
		if err := fn(&b); err != nil {
			if errors.Is(err, errUnchanged) {
				return nil
			}
			return err
		}
		if err := s.store.Save(ctx, id, b); err != nil {
			return fmt.Errorf("save budget %s: %w", id, err)
		}
		result = b
		return nil
	})
	return result, err
}

// record saves the budget with the staged transaction's running total, then
// appends the transaction. A nil transaction writes nothing.
func (s *Service) record(ctx context.Context, id generic.EntityID, stage func(Budget) (*generic.UsageTransaction, error)) (Budget, error) {
	var result Budget
	err := s.opts.Locked(ctx, "budget:"+string(id), func() error {
		stored, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		result = stored
		tx, err := stage(stored)
		if err != nil || tx == nil {
			return err
		}

		b := stored.Clone()
		b.UsedAmount = tx.RunningTotal
		if err := s.store.Save(ctx, id, b); err != nil {
			return fmt.Errorf("save budget %s: %w", id, err)
		}
		if err := s.ledger.commit(ctx, *tx); err != nil {
			if rerr := s.store.Save(ctx, id, stored); rerr != nil {
				s.opts.Logger.Error("budget restore failed",
					zap.String("budget_id", string(id)),
					zap.Error(rerr))
			}
			return err
		}
		result = b
		return nil
	})
	return result, err
}

/*
scheduler.go - Automated budget renewal

PURPOSE:
  Periodically renews every budget whose period has rolled over, so usage
  resets and notifications re-arm without an explicit /renew call.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Checks once immediately on Start, then on every tick
  - Due-ness comes from budget.Service.RenewDue, which uses the service's
    clock; a FixedClock makes the scheduler deterministic in tests
  - A budget that fails to renew is logged and retried on the next tick

CONFIGURATION:
  - Interval: How often to check (default: 1 hour)
  - Enabled:  Whether the scheduler runs at all (default: true)

USAGE:
  scheduler := NewRenewalScheduler(budgets, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - budgets.go: RenewBudget endpoint (manual renewal)
  - budget/renewal.go: Due-ness rules
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

// RenewalScheduler renews due budgets on a ticker.
type RenewalScheduler struct {
	Budgets  *budget.Service
	Logger   *zap.Logger
	Interval time.Duration
	Enabled  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRenewalScheduler builds a scheduler. Set Interval and Enabled before Start.
func NewRenewalScheduler(budgets *budget.Service, logger *zap.Logger) *RenewalScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalScheduler{
		Budgets:  budgets,
		Logger:   logger,
		Interval: time.Hour,
		Enabled:  true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (rs *RenewalScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("renewal scheduler disabled")
		return
	}
	if rs.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.wg.Add(1)
	go rs.run(ctx)

	rs.Logger.Info("renewal scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (rs *RenewalScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel == nil {
		return
	}
	rs.cancel()
	rs.wg.Wait()
	rs.cancel = nil
	rs.Logger.Info("renewal scheduler stopped")
}

func (rs *RenewalScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.Interval)
	defer ticker.Stop()

	rs.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one check and returns the ids it renewed.
func (rs *RenewalScheduler) RunNow(ctx context.Context) []generic.EntityID {
	renewed, err := rs.Budgets.RenewDue(ctx)
	if err != nil {
		rs.Logger.Warn("renewal check incomplete", zap.Error(err))
	}
	if len(renewed) > 0 {
		rs.Logger.Info("budgets renewed", zap.Int("count", len(renewed)))
	}
	return renewed
}

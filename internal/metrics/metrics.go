// Package metrics exposes engine activity as Prometheus counters.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
)

// Outcome label values of b2b_transitions_total.
const (
	OutcomeOK                 = "ok"
	OutcomeNoSuchTransition   = "no_such_transition"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeError              = "error"
)

// Collectors implements generic.Observer.
type Collectors struct {
	Transitions   *prometheus.CounterVec
	Renewals      prometheus.Counter
	Notifications prometheus.Counter
	Usage         prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "b2b_transitions_total",
				Help: "Lifecycle transitions attempted, by outcome",
			},
			[]string{"lifecycle", "action", "outcome"},
		),
		Renewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "b2b_budget_renewals_total",
			Help: "Budget renewals applied",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "b2b_budget_notifications_total",
			Help: "Budget threshold notifications triggered",
		}),
		Usage: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "b2b_budget_usage_tracked_total",
			Help: "Sum of usage amounts tracked against budgets",
		}),
	}
	for _, col := range []prometheus.Collector{c.Transitions, c.Renewals, c.Notifications, c.Usage} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) ObserveTransition(lifecycle, action string, err error) {
	c.Transitions.WithLabelValues(lifecycle, action, outcome(err)).Inc()
}

func (c *Collectors) ObserveUsage(_ generic.EntityID, amount decimal.Decimal) {
	c.Usage.Add(amount.InexactFloat64())
}

func (c *Collectors) ObserveRenewal(generic.EntityID) {
	c.Renewals.Inc()
}

func (c *Collectors) ObserveNotification(generic.EntityID) {
	c.Notifications.Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, generic.ErrPreconditionFailed):
		return OutcomePreconditionFailed
	case errors.Is(err, generic.ErrNoSuchTransition):
		return OutcomeNoSuchTransition
	default:
		return OutcomeError
	}
}

package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

// Reasons a notification does not fire.
const (
	ReasonNotifyDisabled    = "notifications disabled"
	ReasonAlreadySent       = "notification already sent"
	ReasonNoConfig          = "no notification config"
	ReasonBelowThreshold    = "threshold not reached"
	ReasonUnknownThreshold  = "unknown threshold type"
	ReasonThresholdExceeded = "threshold reached"
)

// Trigger is the outcome of SimulateTrigger. When Triggered is false only
// Reason and At are set.
type Trigger struct {
	Triggered  bool                `json:"triggered"`
	Reason     string              `json:"reason"`
	Budget     *Budget             `json:"budget_snapshot,omitempty"`
	Recipients []generic.Recipient `json:"recipients,omitempty"`
	Config     *NotificationConfig `json:"config,omitempty"`
	At         time.Time           `json:"at"`
}

// Evaluator decides whether a budget's usage warrants a notification.
type Evaluator struct {
	recipients generic.RecipientResolver
	opts       generic.Options
}

// NewEvaluator builds an evaluator. A nil resolver yields no recipients.
func NewEvaluator(recipients generic.RecipientResolver, opts ...generic.Option) *Evaluator {
	if recipients == nil {
		recipients = generic.RecipientResolverFunc(func(context.Context, generic.EntityID) ([]generic.Recipient, error) {
			return nil, nil
		})
	}
	return &Evaluator{recipients: recipients, opts: generic.NewOptions(opts...)}
}

// ShouldNotify is Explain without the reason.
func (e *Evaluator) ShouldNotify(b Budget) bool {
	ok, _ := e.Explain(b)
	return ok
}

// Explain is ShouldNotify with the reason spelled out.
func (e *Evaluator) Explain(b Budget) (bool, string) {
	switch {
	case !b.Notify:
		return false, ReasonNotifyDisabled
	case b.Sent:
		return false, ReasonAlreadySent
	case b.NotificationConfig == nil:
		return false, ReasonNoConfig
	}

	cfg := b.NotificationConfig
	var reached bool
	switch cfg.Type {
	case ThresholdPercentage:
		reached = b.UsagePercentage().GreaterThanOrEqual(cfg.Value)
	case ThresholdAmount:
		reached = b.UsedAmount.GreaterThanOrEqual(cfg.Value)
	default:
		return false, fmt.Sprintf("%s %q", ReasonUnknownThreshold, cfg.Type)
	}
	if !reached {
		return false, ReasonBelowThreshold
	}
	return true, ReasonThresholdExceeded
}

// MarkSent latches the notification until the next renewal or reset.
func (e *Evaluator) MarkSent(b *Budget) {
	b.Sent = true
}

// SimulateTrigger fires the notification if it should, latching it.
// The only error is a failure to resolve recipients, in which case the
// latch is left untouched.
func (e *Evaluator) SimulateTrigger(ctx context.Context, b *Budget) (Trigger, error) {
	now := e.opts.Clock.Now()
	ok, reason := e.Explain(*b)
	if !ok {
		return Trigger{Reason: reason, At: now}, nil
	}

	recipients, err := e.recipients.ResolveRecipients(ctx, b.ID)
	if err != nil {
		return Trigger{}, fmt.Errorf("resolve recipients for budget %s: %w", b.ID, err)
	}
	e.MarkSent(b)

	snapshot := b.Clone()
	cfg := *b.NotificationConfig
	e.opts.Observer.ObserveNotification(b.ID)
	e.opts.Logger.Info("budget notification triggered",
		zap.String("budget_id", string(b.ID)),
		zap.String("threshold_type", string(cfg.Type)),
		zap.String("threshold_value", cfg.Value.String()),
		zap.String("used_amount", b.UsedAmount.String()),
		zap.Int("recipients", len(recipients)))

	return Trigger{
		Triggered:  true,
		Reason:     reason,
		Budget:     &snapshot,
		Recipients: recipients,
		Config:     &cfg,
		At:         now,
	}, nil
}

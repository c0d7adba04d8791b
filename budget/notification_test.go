package budget_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
)

func notifyingBudget(amount, used string, typ budget.ThresholdType, value string) budget.Budget {
	b := testBudget(amount, used)
	b.Notify = true
	b.NotificationConfig = &budget.NotificationConfig{Type: typ, Value: dec(value)}
	return b
}

// =============================================================================
// SHOULD NOTIFY
// =============================================================================

func TestEvaluator_PercentageThreshold_Latches(t *testing.T) {
	// GIVEN: amount 100, used 90, percentage threshold 80, notify on
	// WHEN: Evaluating, then marking sent
	// THEN: Fires once; stays quiet afterwards with usage unchanged

	e := budget.NewEvaluator(nil)
	b := notifyingBudget("100", "90", budget.ThresholdPercentage, "80")

	assert.True(t, e.ShouldNotify(b))

	e.MarkSent(&b)
	assert.False(t, e.ShouldNotify(b))

	_, reason := e.Explain(b)
	assert.Equal(t, budget.ReasonAlreadySent, reason)
}

func TestEvaluator_Explain(t *testing.T) {
	e := budget.NewEvaluator(nil)

	tests := []struct {
		name   string
		budget func() budget.Budget
		fire   bool
		reason string
	}{
		{
			name:   "percentage exactly at threshold",
			budget: func() budget.Budget { return notifyingBudget("200", "160", budget.ThresholdPercentage, "80") },
			fire:   true,
			reason: budget.ReasonThresholdExceeded,
		},
		{
			name:   "percentage below threshold",
			budget: func() budget.Budget { return notifyingBudget("200", "159", budget.ThresholdPercentage, "80") },
			reason: budget.ReasonBelowThreshold,
		},
		{
			name:   "amount reached",
			budget: func() budget.Budget { return notifyingBudget("1000", "500", budget.ThresholdAmount, "500") },
			fire:   true,
			reason: budget.ReasonThresholdExceeded,
		},
		{
			name:   "amount not reached",
			budget: func() budget.Budget { return notifyingBudget("1000", "499.99", budget.ThresholdAmount, "500") },
			reason: budget.ReasonBelowThreshold,
		},
		{
			name: "notify disabled",
			budget: func() budget.Budget {
				b := notifyingBudget("100", "100", budget.ThresholdPercentage, "80")
				b.Notify = false
				return b
			},
			reason: budget.ReasonNotifyDisabled,
		},
		{
			name: "no config",
			budget: func() budget.Budget {
				b := notifyingBudget("100", "100", budget.ThresholdPercentage, "80")
				b.NotificationConfig = nil
				return b
			},
			reason: budget.ReasonNoConfig,
		},
		{
			name:   "zero amount budget never reaches a percentage",
			budget: func() budget.Budget { return notifyingBudget("0", "10", budget.ThresholdPercentage, "1") },
			reason: budget.ReasonBelowThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fire, reason := e.Explain(tt.budget())
			assert.Equal(t, tt.fire, fire)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEvaluator_UnknownThresholdType(t *testing.T) {
	e := budget.NewEvaluator(nil)
	b := notifyingBudget("100", "100", budget.ThresholdType("ratio"), "1")

	fire, reason := e.Explain(b)
	assert.False(t, fire)
	assert.Contains(t, reason, budget.ReasonUnknownThreshold)
}

// =============================================================================
// SIMULATE TRIGGER
// =============================================================================

func TestEvaluator_SimulateTrigger_Fires(t *testing.T) {
	recipients := store.NewRecipients()
	recipients.Set("budget-1",
		generic.Recipient{ID: "u1", Email: "buyer@example.com"},
		generic.Recipient{ID: "u2", Email: "finance@example.com"})
	clock := generic.NewFixedClock(generic.Date(2024, time.July, 4))
	e := budget.NewEvaluator(recipients, generic.WithClock(clock))

	b := notifyingBudget("100", "85", budget.ThresholdPercentage, "80")
	trigger, err := e.SimulateTrigger(context.Background(), &b)
	require.NoError(t, err)

	assert.True(t, trigger.Triggered)
	assert.True(t, b.Sent, "trigger latches the budget")
	require.NotNil(t, trigger.Budget)
	assertDecimal(t, "85", trigger.Budget.UsedAmount)
	assert.Len(t, trigger.Recipients, 2)
	require.NotNil(t, trigger.Config)
	assert.Equal(t, budget.ThresholdPercentage, trigger.Config.Type)
	assert.Equal(t, generic.Date(2024, time.July, 4), trigger.At)

	again, err := e.SimulateTrigger(context.Background(), &b)
	require.NoError(t, err)
	assert.False(t, again.Triggered)
	assert.Equal(t, budget.ReasonAlreadySent, again.Reason)
}

func TestEvaluator_SimulateTrigger_NotReached(t *testing.T) {
	e := budget.NewEvaluator(nil)
	b := notifyingBudget("100", "10", budget.ThresholdPercentage, "80")

	trigger, err := e.SimulateTrigger(context.Background(), &b)
	require.NoError(t, err)
	assert.False(t, trigger.Triggered)
	assert.Equal(t, budget.ReasonBelowThreshold, trigger.Reason)
	assert.Nil(t, trigger.Budget)
	assert.False(t, b.Sent)
}

func TestEvaluator_SimulateTrigger_ResolverFailureLeavesLatch(t *testing.T) {
	boom := errors.New("directory unavailable")
	e := budget.NewEvaluator(generic.RecipientResolverFunc(
		func(context.Context, generic.EntityID) ([]generic.Recipient, error) { return nil, boom }))
	b := notifyingBudget("100", "100", budget.ThresholdPercentage, "80")

	_, err := e.SimulateTrigger(context.Background(), &b)
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.Sent)
}

func TestEvaluator_RenewalRearms(t *testing.T) {
	// GIVEN: A budget whose notification already fired
	// WHEN: It renews and usage climbs past the threshold again
	// THEN: The notification fires again

	e := budget.NewEvaluator(nil)
	s := budget.NewScheduler()
	b := notifyingBudget("100", "90", budget.ThresholdPercentage, "80")
	e.MarkSent(&b)
	require.False(t, e.ShouldNotify(b))

	s.Renew(&b, generic.Date(2024, time.February, 1))
	assert.False(t, e.ShouldNotify(b), "usage was reset")

	b.UsedAmount = dec("81")
	assert.True(t, e.ShouldNotify(b))
}

package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
	"github.com/warp/b2b-engine/internal/metrics"
)

func TestCollectors_Transitions(t *testing.T) {
	// GIVEN: An approval lifecycle reporting to the collectors
	// WHEN: An order is attempted before approval, then approved
	// THEN: Outcomes are counted per lifecycle/action

	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	lc := approval.NewLifecycle(store.NewMemory[approval.PendingOrder]("pending order"), generic.WithObserver(c))
	_, err = lc.Create(ctx, approval.PendingOrder{ID: "po-1"})
	require.NoError(t, err)

	_, err = lc.Order(ctx, "po-1")
	require.Error(t, err)
	_, err = lc.Approve(ctx, "po-1", "alice")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("approval", "order", metrics.OutcomePreconditionFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("approval", "approve", metrics.OutcomeOK)))
}

func TestCollectors_Budget(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	c.ObserveUsage("b-1", generic.MustParseDecimal("12.5"))
	c.ObserveUsage("b-1", generic.MustParseDecimal("7.5"))
	c.ObserveRenewal("b-1")
	c.ObserveNotification("b-1")
	c.ObserveNotification("b-2")

	assert.Equal(t, 20.0, testutil.ToFloat64(c.Usage))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Renewals))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Notifications))
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}

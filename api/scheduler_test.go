package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/api"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
)

func schedulerFixture(t *testing.T) *budget.Service {
	t.Helper()
	ctx := context.Background()
	clock := generic.NewFixedClock(generic.Date(2024, time.March, 5))
	svc := budget.NewService(store.NewMemory[budget.Budget]("budget"), store.NewUsageLog(), nil, generic.WithClock(clock))

	for _, b := range []budget.Budget{
		factory.NewBudget("monthly", generic.MustParseDecimal("100"),
			factory.WithCadence(generic.CadenceMonthly),
			factory.WithLastRenewal(generic.Date(2024, time.February, 1)),
			factory.WithUsed(generic.MustParseDecimal("40"))),
		factory.NewBudget("yearly", generic.MustParseDecimal("100"),
			factory.WithCadence(generic.CadenceYearly),
			factory.WithLastRenewal(generic.Date(2024, time.January, 1)),
			factory.WithUsed(generic.MustParseDecimal("40"))),
	} {
		_, err := svc.Create(ctx, b)
		require.NoError(t, err)
	}
	return svc
}

func TestRenewalScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	svc := schedulerFixture(t)
	rs := api.NewRenewalScheduler(svc, nil)

	assert.Equal(t, []generic.EntityID{"monthly"}, rs.RunNow(ctx))
	assert.Empty(t, rs.RunNow(ctx), "already renewed this period")

	b, err := svc.Get(ctx, "monthly")
	require.NoError(t, err)
	assert.True(t, b.UsedAmount.IsZero())
}

func TestRenewalScheduler_StartStop(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	// WHEN: Starting (twice) and stopping (twice)
	// THEN: The immediate check has run and neither call blocks or panics

	ctx := context.Background()
	svc := schedulerFixture(t)
	rs := api.NewRenewalScheduler(svc, nil)

	rs.Start()
	rs.Start()
	rs.Stop()
	rs.Stop()

	b, err := svc.Get(ctx, "monthly")
	require.NoError(t, err)
	assert.True(t, b.UsedAmount.IsZero())
}

func TestRenewalScheduler_Disabled(t *testing.T) {
	ctx := context.Background()
	svc := schedulerFixture(t)
	rs := api.NewRenewalScheduler(svc, nil)
	rs.Enabled = false

	rs.Start()
	rs.Stop()

	b, err := svc.Get(ctx, "monthly")
	require.NoError(t, err)
	assert.True(t, generic.MustParseDecimal("40").Equal(b.UsedAmount))
}

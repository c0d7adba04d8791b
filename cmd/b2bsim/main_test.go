package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/internal/config"
	"github.com/warp/b2b-engine/internal/logging"
)

func loadScenario(t *testing.T, name string, until time.Time) *app {
	t.Helper()
	sc, err := factory.LookupScenario(name)
	require.NoError(t, err)
	fx, err := sc.Fixtures()
	require.NoError(t, err)

	a, err := buildApp(context.Background(), config.Default(), logging.NewNop(), generic.WithClock(generic.NewFixedClock(until)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(logging.NewNop()) })

	require.NoError(t, fx.Load(context.Background(), a.handler.Fixtures))
	return a
}

func TestRunSimulation_BudgetExceed(t *testing.T) {
	// GIVEN: A 100 budget at 90 with an 80% threshold, renewed 2024-01-01
	// WHEN: Tracking 20 and simulating to 2024-01-20
	// THEN: No renewal happens and the notification fires to the recipient

	until := generic.Date(2024, time.January, 20)
	a := loadScenario(t, "budget-exceed", until)

	res, err := runSimulation(context.Background(), a.handler.Budgets, simulateRequest{
		Budget: "b-exceed",
		Until:  until,
		Track:  decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Renewals)
	assert.True(t, decimal.NewFromInt(110).Equal(res.Budget.UsedAmount))
	assert.True(t, res.Summary.Exceeded)
	assert.True(t, res.Notification.Triggered)
	assert.Len(t, res.Notification.Recipients, 1)
	assert.True(t, res.Budget.Sent)
}

func TestRunSimulation_MonthlyRenewal(t *testing.T) {
	// GIVEN: A monthly budget renewed 2024-01-15 with the notification sent
	// WHEN: Simulating to 2024-04-20
	// THEN: Three renewals reset usage and re-arm the notification

	until := generic.Date(2024, time.April, 20)
	a := loadScenario(t, "monthly-renewal", until)

	res, err := runSimulation(context.Background(), a.handler.Budgets, simulateRequest{Budget: "b-monthly", Until: until})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		generic.Date(2024, time.February, 15),
		generic.Date(2024, time.March, 15),
		generic.Date(2024, time.April, 15),
	}, res.Renewals)
	assert.True(t, res.Budget.UsedAmount.IsZero())
	assert.False(t, res.Budget.Sent)
	assert.False(t, res.Notification.Triggered)
}

func TestRunSimulation_UnknownBudget(t *testing.T) {
	until := generic.Date(2024, time.January, 20)
	a := loadScenario(t, "budget-exceed", until)

	_, err := runSimulation(context.Background(), a.handler.Budgets, simulateRequest{Budget: "b-missing", Until: until})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestGraphCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"graph", "approval"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "graph LR")
	assert.Contains(t, out.String(), "pending")
	assert.Contains(t, out.String(), "approve")
}

func TestGraphCommand_UnknownLifecycle(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"graph", "invoice"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	assert.Error(t, rootCmd.Execute())
}

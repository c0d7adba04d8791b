package sqldb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/quote"
	"github.com/warp/b2b-engine/store/sqldb"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqldb.Store {
	t.Helper()
	s, err := sqldb.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func items() []generic.LineItem {
	return []generic.LineItem{
		{SKU: "SW-1", Name: "Widget", Quantity: 2, UnitPrice: generic.MustParseDecimal("9.99")},
	}
}

// =============================================================================
// ENTITY STORE
// =============================================================================

func TestEntityStore_RoundTripThroughLifecycle(t *testing.T) {
	// GIVEN: A quote lifecycle backed by SQLite
	// WHEN: Running the full acceptance workflow
	// THEN: The stored quote is accepted and keeps its line items

	s := newTestStore(t)
	ctx := context.Background()
	lc := quote.NewLifecycle(sqldb.NewEntityStore[quote.Quote](s, "quote"))

	_, err := lc.Create(ctx, quote.Quote{ID: "q-1", LineItems: items()})
	require.NoError(t, err)

	q, err := lc.SimulateFullAcceptanceWorkflow(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateAccepted, q.State)
	require.Len(t, q.LineItems, 1)
	assert.True(t, generic.MustParseDecimal("19.98").Equal(q.Total()))

	ok, err := lc.CanConvertToOrder(ctx, "q-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEntityStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	store := sqldb.NewEntityStore[quote.Quote](s, "quote")

	_, err := store.Load(context.Background(), "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestEntityStore_KindsAreSeparate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	quotes := sqldb.NewEntityStore[quote.Quote](s, "quote")
	orders := sqldb.NewEntityStore[approval.PendingOrder](s, "pending_order")

	require.NoError(t, quotes.Save(ctx, "x-1", quote.Quote{ID: "x-1", State: quote.StateDraft}))
	require.NoError(t, orders.Save(ctx, "x-1", approval.PendingOrder{ID: "x-1", State: approval.StatePending}))

	q, err := quotes.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, quote.StateDraft, q.State)

	po, err := orders.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, approval.StatePending, po.State)
}

func TestEntityStore_ListOrderAndState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	store := sqldb.NewEntityStore[quote.Quote](s, "quote")

	for _, id := range []generic.EntityID{"q-b", "q-a", "q-c"} {
		require.NoError(t, store.Save(ctx, id, quote.Quote{ID: id, State: quote.StateDraft}))
	}
	// Updating q-b keeps its position.
	require.NoError(t, store.Save(ctx, "q-b", quote.Quote{ID: "q-b", State: quote.StateOpen}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EntityID("q-b"), all[0].ID)
	assert.Equal(t, generic.EntityID("q-a"), all[1].ID)
	assert.Equal(t, generic.EntityID("q-c"), all[2].ID)

	open, err := store.ListByState(ctx, string(quote.StateOpen))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, generic.EntityID("q-b"), open[0].ID)
}

// =============================================================================
// BUDGET STORE
// =============================================================================

func TestBudgetStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	store := sqldb.NewBudgetStore(s)

	last := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	in := budget.Budget{
		ID:          "b-1",
		Name:        "Marketing",
		Amount:      generic.MustParseDecimal("1000.50"),
		UsedAmount:  generic.MustParseDecimal("250.25"),
		RenewsType:  generic.CadenceMonthly,
		LastRenewal: &last,
		Notify:      true,
		NotificationConfig: &budget.NotificationConfig{
			Type:  budget.ThresholdPercentage,
			Value: generic.MustParseDecimal("80"),
		},
	}
	require.NoError(t, store.Save(ctx, in.ID, in))

	out, err := store.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Marketing", out.Name)
	assert.True(t, in.Amount.Equal(out.Amount))
	assert.True(t, in.UsedAmount.Equal(out.UsedAmount))
	assert.Equal(t, generic.CadenceMonthly, out.RenewsType)
	require.NotNil(t, out.LastRenewal)
	assert.True(t, last.Equal(*out.LastRenewal))
	assert.True(t, out.Notify)
	assert.False(t, out.Sent)
	require.NotNil(t, out.NotificationConfig)
	assert.Equal(t, budget.ThresholdPercentage, out.NotificationConfig.Type)
	assert.True(t, generic.MustParseDecimal("80").Equal(out.NotificationConfig.Value))

	// Upsert clears optional columns.
	in.LastRenewal = nil
	in.NotificationConfig = nil
	in.Sent = true
	require.NoError(t, store.Save(ctx, in.ID, in))

	out, err = store.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Nil(t, out.LastRenewal)
	assert.Nil(t, out.NotificationConfig)
	assert.True(t, out.Sent)

	_, err = store.Load(ctx, "b-2")
	assert.True(t, generic.IsNotFound(err))
}

func TestBudgetStore_KeepsUTCOffset(t *testing.T) {
	// GIVEN: A monthly budget renewed at 00:30 on Feb 1 in UTC+2
	// WHEN: Saving it to SQLite and loading it back
	// THEN: The instant keeps its offset and answers IsDue like the original

	s := newTestStore(t)
	ctx := context.Background()
	store := sqldb.NewBudgetStore(s)

	plus2 := time.FixedZone("", 2*60*60)
	last := time.Date(2024, time.February, 1, 0, 30, 0, 0, plus2)
	in := budget.Budget{
		ID:          "b-tz",
		Amount:      generic.MustParseDecimal("100"),
		UsedAmount:  generic.MustParseDecimal("0"),
		RenewsType:  generic.CadenceMonthly,
		LastRenewal: &last,
	}
	require.NoError(t, store.Save(ctx, in.ID, in))

	out, err := store.Load(ctx, "b-tz")
	require.NoError(t, err)
	require.NotNil(t, out.LastRenewal)
	assert.True(t, last.Equal(*out.LastRenewal))
	_, offset := out.LastRenewal.Zone()
	assert.Equal(t, 2*60*60, offset)
	assert.Equal(t, time.February, out.LastRenewal.Month())

	scheduler := budget.NewScheduler()
	now := time.Date(2024, time.February, 10, 0, 0, 0, 0, plus2)
	assert.Equal(t, scheduler.IsDue(in, now), scheduler.IsDue(out, now))
	assert.False(t, scheduler.IsDue(out, now))
}

func TestUsageLog_KeepsUTCOffset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	log := sqldb.NewUsageLog(s)

	at := time.Date(2024, time.March, 1, 0, 15, 0, 0, time.FixedZone("", -5*60*60))
	require.NoError(t, log.Append(ctx, generic.UsageTransaction{
		ID: "tx-1", BudgetID: "b-1", Amount: generic.MustParseDecimal("5"),
		Timestamp: at, RunningTotal: generic.MustParseDecimal("5"),
	}))

	txs, err := log.Transactions(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, at.Equal(txs[0].Timestamp))
	assert.Equal(t, time.March, txs[0].Timestamp.Month())
}

func TestBudgetService_OverSQLite(t *testing.T) {
	// GIVEN: A monthly budget of 100 persisted in SQLite
	// WHEN: Filling to 90% and letting three months pass
	// THEN: Usage and log persist; renewal resets usage in the table

	s := newTestStore(t)
	ctx := context.Background()
	clock := generic.NewFixedClock(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	svc := budget.NewService(sqldb.NewBudgetStore(s), sqldb.NewUsageLog(s), nil, generic.WithClock(clock))

	last := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(ctx, budget.Budget{
		ID:          "b-1",
		Amount:      generic.MustParseDecimal("100"),
		RenewsType:  generic.CadenceMonthly,
		LastRenewal: &last,
	})
	require.NoError(t, err)

	_, err = svc.FillToPercentage(ctx, "b-1", generic.MustParseDecimal("90"))
	require.NoError(t, err)

	txs, err := svc.Transactions(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, generic.MustParseDecimal("90").Equal(txs[0].RunningTotal))
	assert.True(t, clock.Now().Equal(txs[0].Timestamp))

	_, renewals, err := svc.SimulateTimePassage(ctx, "b-1", time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, renewals, 3)

	b, err := svc.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, b.UsedAmount.IsZero())
	assert.True(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC).Equal(*b.LastRenewal))
}

// =============================================================================
// USAGE LOG
// =============================================================================

func TestUsageLog_AppendListClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	log := sqldb.NewUsageLog(s)
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tx := func(id, budgetID, amount, total string) generic.UsageTransaction {
		return generic.UsageTransaction{
			ID:           generic.TransactionID(id),
			BudgetID:     generic.EntityID(budgetID),
			Amount:       generic.MustParseDecimal(amount),
			Description:  "test",
			Timestamp:    at,
			RunningTotal: generic.MustParseDecimal(total),
		}
	}

	require.NoError(t, log.Append(ctx, tx("t-1", "b-1", "10", "10")))
	require.NoError(t, log.Append(ctx, tx("t-2", "b-1", "5", "15")))
	require.NoError(t, log.Append(ctx, tx("t-3", "b-2", "1", "1")))

	err := log.Append(ctx, tx("t-1", "b-1", "10", "25"))
	assert.ErrorIs(t, err, generic.ErrInvalidInput, "duplicate id is rejected")

	got, err := log.Transactions(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, generic.TransactionID("t-1"), got[0].ID)
	assert.Equal(t, generic.TransactionID("t-2"), got[1].ID)
	assert.True(t, generic.MustParseDecimal("15").Equal(got[1].RunningTotal))
	assert.True(t, at.Equal(got[0].Timestamp))

	require.NoError(t, log.Clear(ctx, "b-1"))
	got, err = log.Transactions(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, _ = log.Transactions(ctx, "b-2")
	assert.Len(t, got, 1)

	require.NoError(t, log.ClearAll(ctx))
	got, _ = log.Transactions(ctx, "b-2")
	assert.Empty(t, got)
}

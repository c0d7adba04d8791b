/*
fixtures_test.go - Tests for fixture parsing, loading and scenarios

PURPOSE:
	Fixture documents must round into the same entities the lifecycles
	create, and reject anything the lifecycles would reject. Every built-in
	scenario must parse and drive its intended workflow.
*/
package factory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
	"github.com/warp/b2b-engine/quote"
)

const fullDocument = `
budgets:
  - id: b-1
    name: Marketing
    amount: "100"
    used_amount: 12.5
    renews_type: monthly
    last_renewal: 2024-01-01
    notify: true
    notification_config: {type: percentage, value: 80}
quotes:
  - id: q-1
    line_items: [{sku: SW-1, quantity: 2, unit_price: "9.99"}]
pending_orders:
  - {id: po-1, customer_id: c-1, state: approved, approved_by: boss, line_items: [{sku: A, quantity: 1, unit_price: 5}]}
recipients:
  b-1: [{id: u-1, email: buyer@example.com}]
`

func TestParse_FullDocument(t *testing.T) {
	fx, err := factory.Parse([]byte(fullDocument))
	require.NoError(t, err)

	require.Len(t, fx.Budgets, 1)
	b := fx.Budgets[0]
	assert.Equal(t, generic.EntityID("b-1"), b.ID)
	assert.True(t, generic.MustParseDecimal("100").Equal(b.Amount))
	assert.True(t, generic.MustParseDecimal("12.5").Equal(b.UsedAmount))
	assert.Equal(t, generic.CadenceMonthly, b.RenewsType)
	require.NotNil(t, b.LastRenewal)
	assert.Equal(t, generic.Date(2024, time.January, 1), *b.LastRenewal)
	require.NotNil(t, b.NotificationConfig)
	assert.Equal(t, budget.ThresholdPercentage, b.NotificationConfig.Type)
	assert.True(t, generic.MustParseDecimal("80").Equal(b.NotificationConfig.Value))

	require.Len(t, fx.Quotes, 1)
	assert.Equal(t, quote.StateDraft, fx.Quotes[0].State, "state defaults to draft")
	assert.True(t, generic.MustParseDecimal("19.98").Equal(fx.Quotes[0].Total()))

	require.Len(t, fx.PendingOrders, 1)
	assert.Equal(t, approval.StateApproved, fx.PendingOrders[0].State)
	assert.Equal(t, "boss", fx.PendingOrders[0].ApprovedBy)

	assert.Equal(t, []generic.Recipient{{ID: "u-1", Email: "buyer@example.com"}}, fx.Recipients["b-1"])
}

func TestParse_JSON(t *testing.T) {
	doc := `{"budgets": [{"id": "b-1", "amount": "50", "renews_type": "yearly", "last_renewal": "2024-06-01T00:00:00Z"}]}`

	fx, err := factory.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, fx.Budgets, 1)
	assert.Equal(t, generic.CadenceYearly, fx.Budgets[0].RenewsType)
	assert.Equal(t, generic.Date(2024, time.June, 1), *fx.Budgets[0].LastRenewal)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level key", "widgets: []"},
		{"unknown field", "budgets: [{id: b-1, amount: 1, colour: red}]"},
		{"unknown cadence", "budgets: [{id: b-1, amount: 1, renews_type: fortnightly}]"},
		{"unknown threshold", "budgets: [{id: b-1, amount: 1, notification_config: {type: ratio, value: 1}}]"},
		{"negative amount", `budgets: [{id: b-1, amount: "-5"}]`},
		{"bad decimal", `budgets: [{id: b-1, amount: "lots"}]`},
		{"missing budget id", "budgets: [{amount: 1}]"},
		{"unknown quote state", "quotes: [{id: q-1, state: closed}]"},
		{"unknown pending order state", "pending_orders: [{id: po-1, state: shipped}]"},
		{"malformed yaml", "budgets: [{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, factory.ErrInvalidFixture), "got %v", err)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestFixtures_Load(t *testing.T) {
	// GIVEN: A parsed document and in-memory stores
	// WHEN: Loading
	// THEN: Every entity is retrievable and recipients resolve

	ctx := context.Background()
	fx, err := factory.Parse([]byte(fullDocument))
	require.NoError(t, err)

	budgets := store.NewMemory[budget.Budget]("budget")
	quotes := store.NewMemory[quote.Quote]("quote")
	orders := store.NewMemory[approval.PendingOrder]("pending order")
	recipients := store.NewRecipients()

	require.NoError(t, fx.Load(ctx, factory.Stores{
		Budgets:       budgets,
		Quotes:        quotes,
		PendingOrders: orders,
		Recipients:    recipients,
	}))

	b, err := budgets.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Marketing", b.Name)

	_, err = quotes.Load(ctx, "q-1")
	require.NoError(t, err)
	_, err = orders.Load(ctx, "po-1")
	require.NoError(t, err)

	rs, err := recipients.ResolveRecipients(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestFixtures_LoadSkipsNilStores(t *testing.T) {
	fx, err := factory.Parse([]byte(fullDocument))
	require.NoError(t, err)

	quotes := store.NewMemory[quote.Quote]("quote")
	require.NoError(t, fx.Load(context.Background(), factory.Stores{Quotes: quotes}))

	all, _ := quotes.List(context.Background())
	assert.Len(t, all, 1)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_AllParse(t *testing.T) {
	names := make([]string, 0)
	for _, s := range factory.Scenarios() {
		names = append(names, s.Name)
		_, err := s.Fixtures()
		assert.NoError(t, err, s.Name)
		assert.NotEmpty(t, s.Description, s.Name)
	}
	assert.Equal(t, []string{"approval-flow", "budget-exceed", "monthly-renewal", "quote-acceptance", "quote-rejection"}, names)

	_, err := factory.LookupScenario("nope")
	assert.True(t, generic.IsNotFound(err))
}

func TestScenario_QuoteAcceptance(t *testing.T) {
	ctx := context.Background()
	s, err := factory.LookupScenario("quote-acceptance")
	require.NoError(t, err)
	fx, err := s.Fixtures()
	require.NoError(t, err)

	quotes := store.NewMemory[quote.Quote]("quote")
	require.NoError(t, fx.Load(ctx, factory.Stores{Quotes: quotes}))

	lc := quote.NewLifecycle(quotes)
	q, err := lc.SimulateFullAcceptanceWorkflow(ctx, "q-accept")
	require.NoError(t, err)
	assert.Equal(t, quote.StateAccepted, q.State)

	ok, err := quote.CanConvertToOrder(q)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScenario_BudgetExceed(t *testing.T) {
	// GIVEN: The budget-exceed scenario (90 of 100 used, 80% threshold)
	// WHEN: Simulating the notification trigger, then exceeding by 10
	// THEN: It triggers once to the scenario recipient and ends exceeded

	ctx := context.Background()
	s, _ := factory.LookupScenario("budget-exceed")
	fx, err := s.Fixtures()
	require.NoError(t, err)

	budgets := store.NewMemory[budget.Budget]("budget")
	recipients := store.NewRecipients()
	require.NoError(t, fx.Load(ctx, factory.Stores{Budgets: budgets, Recipients: recipients}))

	svc := budget.NewService(budgets, store.NewUsageLog(), recipients)
	trig, err := svc.SimulateTrigger(ctx, "b-exceed")
	require.NoError(t, err)
	assert.True(t, trig.Triggered)
	assert.Equal(t, []generic.Recipient{{ID: "u-1", Email: "finance@example.com"}}, trig.Recipients)

	b, err := svc.ExceedBy(ctx, "b-exceed", generic.MustParseDecimal("10"))
	require.NoError(t, err)
	assert.True(t, b.IsExceeded())
	assert.True(t, generic.MustParseDecimal("110").Equal(b.UsedAmount))
}

func TestScenario_MonthlyRenewal(t *testing.T) {
	ctx := context.Background()
	s, _ := factory.LookupScenario("monthly-renewal")
	fx, err := s.Fixtures()
	require.NoError(t, err)

	budgets := store.NewMemory[budget.Budget]("budget")
	require.NoError(t, fx.Load(ctx, factory.Stores{Budgets: budgets}))

	svc := budget.NewService(budgets, store.NewUsageLog(), nil)
	b, renewals, err := svc.SimulateTimePassage(ctx, "b-monthly", generic.Date(2024, time.April, 20))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		generic.Date(2024, time.February, 15),
		generic.Date(2024, time.March, 15),
		generic.Date(2024, time.April, 15),
	}, renewals)
	assert.True(t, b.UsedAmount.IsZero())
	assert.False(t, b.Sent, "renewal re-arms the notification")
}

func TestScenario_ApprovalFlow(t *testing.T) {
	ctx := context.Background()
	s, _ := factory.LookupScenario("approval-flow")
	fx, err := s.Fixtures()
	require.NoError(t, err)

	orders := store.NewMemory[approval.PendingOrder]("pending order")
	require.NoError(t, fx.Load(ctx, factory.Stores{PendingOrders: orders}))

	conv, err := approval.NewLifecycle(orders).SimulateApprovalWorkflow(ctx, "po-approve", "manager-1")
	require.NoError(t, err)
	assert.True(t, generic.MustParseDecimal("3897").Equal(conv.Order.Total))
}

// =============================================================================
// BUILDERS
// =============================================================================

func TestBuilders(t *testing.T) {
	renewed := generic.Date(2024, time.March, 1)
	b := factory.NewBudget("b-1", generic.MustParseDecimal("200"),
		factory.WithName("Travel"),
		factory.WithUsed(generic.MustParseDecimal("50")),
		factory.WithCadence(generic.CadenceWeekly),
		factory.WithLastRenewal(renewed),
		factory.WithThreshold(budget.ThresholdAmount, generic.MustParseDecimal("150")))

	require.NoError(t, b.Validate())
	assert.Equal(t, "Travel", b.Name)
	assert.True(t, b.Notify)
	assert.Equal(t, renewed, *b.LastRenewal)
	assert.True(t, generic.MustParseDecimal("150").Equal(b.Remaining()))

	plain := factory.NewBudget("b-2", generic.MustParseDecimal("10"))
	assert.Equal(t, generic.CadenceNone, plain.RenewsType)
	assert.False(t, plain.Notify)

	q := factory.NewQuote("q-1", factory.Item("A", 2, "1.25"))
	assert.Equal(t, quote.StateDraft, q.State)
	assert.True(t, generic.MustParseDecimal("2.5").Equal(q.Total()))

	p := factory.NewPendingOrder("po-1")
	assert.Equal(t, approval.StatePending, p.State)
	assert.Empty(t, p.LineItems)
}

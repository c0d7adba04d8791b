/*
Package factory builds quotes, pending orders and budgets from YAML or JSON
fixture documents, and ships the named scenarios used by the simulator.

PURPOSE:
  Scenario setup without code changes. A fixture file describes the starting
  world (budgets with their usage and renewal history, quotes and pending
  orders in any state, notification recipients) and Load puts it into
  whatever stores the process runs with.

DOCUMENT SCHEMA:
  budgets:
    - id: b-1
      name: Marketing
      amount: "100"
      used_amount: "0"
      renews_type: monthly
      last_renewal: 2024-01-01
      notify: true
      notification_config: {type: percentage, value: 80}
  quotes:
    - id: q-1
      state: draft
      line_items: [{sku: SW-1, quantity: 2, unit_price: "9.99"}]
  pending_orders:
    - {id: po-1, customer_id: c-1, state: pending, line_items: [...]}
  recipients:
    b-1: [{id: u-1, email: buyer@example.com}]

  JSON is accepted as-is (it is valid YAML). Amounts may be strings or
  numbers; strings are preferred since they keep exact decimals.

VALIDATION:
  Unknown keys, states, cadences and threshold types fail with
  ErrInvalidFixture. Defaults: state draft/pending, cadence none.

USAGE:
  fx, err := factory.Parse(data)
  err = fx.Load(ctx, factory.Stores{Budgets: budgets, Quotes: quotes})

SEE ALSO:
  - scenarios.go: Named fixture sets
  - builders.go:  Programmatic constructors for tests
*/
package factory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/quote"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFixture is returned for documents that do not describe a valid
// world. It wraps generic.ErrInvalidInput.
var ErrInvalidFixture = fmt.Errorf("%w: invalid fixture", generic.ErrInvalidInput)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

type document struct {
	Budgets       []budgetDoc                    `mapstructure:"budgets"`
	Quotes        []quoteDoc                     `mapstructure:"quotes"`
	PendingOrders []pendingOrderDoc              `mapstructure:"pending_orders"`
	Recipients    map[string][]generic.Recipient `mapstructure:"recipients"`
}

type budgetDoc struct {
	ID                 string           `mapstructure:"id"`
	Name               string           `mapstructure:"name"`
	Amount             decimal.Decimal  `mapstructure:"amount"`
	UsedAmount         decimal.Decimal  `mapstructure:"used_amount"`
	RenewsType         string           `mapstructure:"renews_type"`
	LastRenewal        *time.Time       `mapstructure:"last_renewal"`
	Notify             bool             `mapstructure:"notify"`
	Sent               bool             `mapstructure:"sent"`
	NotificationConfig *notificationDoc `mapstructure:"notification_config"`
}

type notificationDoc struct {
	Type  string          `mapstructure:"type"`
	Value decimal.Decimal `mapstructure:"value"`
}

type lineItemDoc struct {
	SKU       string          `mapstructure:"sku"`
	Name      string          `mapstructure:"name"`
	Quantity  int64           `mapstructure:"quantity"`
	UnitPrice decimal.Decimal `mapstructure:"unit_price"`
}

type quoteDoc struct {
	ID        string        `mapstructure:"id"`
	Name      string        `mapstructure:"name"`
	State     string        `mapstructure:"state"`
	LineItems []lineItemDoc `mapstructure:"line_items"`
}

type pendingOrderDoc struct {
	ID         string        `mapstructure:"id"`
	CustomerID string        `mapstructure:"customer_id"`
	State      string        `mapstructure:"state"`
	ApprovedBy string        `mapstructure:"approved_by"`
	LineItems  []lineItemDoc `mapstructure:"line_items"`
}

// =============================================================================
// FIXTURES
// =============================================================================

// Fixtures is a parsed, validated fixture document.
type Fixtures struct {
	Budgets       []budget.Budget
	Quotes        []quote.Quote
	PendingOrders []approval.PendingOrder
	Recipients    map[generic.EntityID][]generic.Recipient
}

// RecipientSetter receives the recipients section on Load.
type RecipientSetter interface {
	Set(budgetID generic.EntityID, recipients ...generic.Recipient)
}

// Stores are the destinations for Load. Nil stores are skipped.
type Stores struct {
	Budgets       generic.EntityStore[budget.Budget]
	Quotes        generic.EntityStore[quote.Quote]
	PendingOrders generic.EntityStore[approval.PendingOrder]
	Recipients    RecipientSetter
}

// Parse decodes a YAML or JSON fixture document.
func Parse(data []byte) (*Fixtures, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	var doc document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(decimalHook, timeHook),
		ErrorUnused: true,
		Result:      &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	return doc.build()
}

func (d document) build() (*Fixtures, error) {
	fx := &Fixtures{Recipients: make(map[generic.EntityID][]generic.Recipient, len(d.Recipients))}

	for i, bd := range d.Budgets {
		b, err := bd.build()
		if err != nil {
			return nil, fmt.Errorf("%w: budgets[%d]: %w", ErrInvalidFixture, i, err)
		}
		fx.Budgets = append(fx.Budgets, b)
	}
	for i, qd := range d.Quotes {
		q, err := qd.build()
		if err != nil {
			return nil, fmt.Errorf("%w: quotes[%d]: %w", ErrInvalidFixture, i, err)
		}
		fx.Quotes = append(fx.Quotes, q)
	}
	for i, pd := range d.PendingOrders {
		p, err := pd.build()
		if err != nil {
			return nil, fmt.Errorf("%w: pending_orders[%d]: %w", ErrInvalidFixture, i, err)
		}
		fx.PendingOrders = append(fx.PendingOrders, p)
	}
	for id, rs := range d.Recipients {
		fx.Recipients[generic.EntityID(id)] = rs
	}
	return fx, nil
}

func (bd budgetDoc) build() (budget.Budget, error) {
	cadence, err := generic.ParseCadence(bd.RenewsType)
	if err != nil {
		return budget.Budget{}, err
	}
	b := budget.Budget{
		ID:          generic.EntityID(bd.ID),
		Name:        bd.Name,
		Amount:      bd.Amount,
		UsedAmount:  bd.UsedAmount,
		RenewsType:  cadence,
		LastRenewal: bd.LastRenewal,
		Notify:      bd.Notify,
		Sent:        bd.Sent,
	}
	if nc := bd.NotificationConfig; nc != nil {
		typ := budget.ThresholdType(nc.Type)
		if !typ.Known() {
			return budget.Budget{}, fmt.Errorf("unknown threshold type %q", nc.Type)
		}
		b.NotificationConfig = &budget.NotificationConfig{Type: typ, Value: nc.Value}
	}
	return b, b.Validate()
}

func (qd quoteDoc) build() (quote.Quote, error) {
	if qd.ID == "" {
		return quote.Quote{}, fmt.Errorf("quote id is required")
	}
	state := quote.StateDraft
	if qd.State != "" {
		s, err := quote.ParseState(qd.State)
		if err != nil {
			return quote.Quote{}, err
		}
		state = s
	}
	return quote.Quote{
		ID:        generic.EntityID(qd.ID),
		Name:      qd.Name,
		State:     state,
		LineItems: buildItems(qd.LineItems),
	}, nil
}

func (pd pendingOrderDoc) build() (approval.PendingOrder, error) {
	if pd.ID == "" {
		return approval.PendingOrder{}, fmt.Errorf("pending order id is required")
	}
	state := approval.StatePending
	if pd.State != "" {
		s, err := approval.ParseState(pd.State)
		if err != nil {
			return approval.PendingOrder{}, err
		}
		state = s
	}
	return approval.PendingOrder{
		ID:         generic.EntityID(pd.ID),
		CustomerID: pd.CustomerID,
		State:      state,
		ApprovedBy: pd.ApprovedBy,
		LineItems:  buildItems(pd.LineItems),
	}, nil
}

func buildItems(docs []lineItemDoc) []generic.LineItem {
	items := make([]generic.LineItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, generic.LineItem{SKU: d.SKU, Name: d.Name, Quantity: d.Quantity, UnitPrice: d.UnitPrice})
	}
	return items
}

// Load saves every entity into its store and registers recipients.
func (fx *Fixtures) Load(ctx context.Context, s Stores) error {
	if s.Budgets != nil {
		for _, b := range fx.Budgets {
			if err := s.Budgets.Save(ctx, b.ID, b.Clone()); err != nil {
				return fmt.Errorf("load budget %s: %w", b.ID, err)
			}
		}
	}
	if s.Quotes != nil {
		for _, q := range fx.Quotes {
			if err := s.Quotes.Save(ctx, q.ID, q); err != nil {
				return fmt.Errorf("load quote %s: %w", q.ID, err)
			}
		}
	}
	if s.PendingOrders != nil {
		for _, p := range fx.PendingOrders {
			if err := s.PendingOrders.Save(ctx, p.ID, p); err != nil {
				return fmt.Errorf("load pending order %s: %w", p.ID, err)
			}
		}
	}
	if s.Recipients != nil {
		for _, id := range fx.RecipientBudgets() {
			s.Recipients.Set(id, fx.Recipients[id]...)
		}
	}
	return nil
}

// RecipientBudgets returns the budget ids with recipients, sorted.
func (fx *Fixtures) RecipientBudgets() []generic.EntityID {
	ids := make([]generic.EntityID, 0, len(fx.Recipients))
	for id := range fx.Recipients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Budget looks up a budget by id.
func (fx *Fixtures) Budget(id generic.EntityID) (budget.Budget, bool) {
	for _, b := range fx.Budgets {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return budget.Budget{}, false
}

// =============================================================================
// DECODE HOOKS
// =============================================================================

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// decimalHook accepts strings and YAML numbers for decimal fields.
func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return data, nil
	}
}

// timeHook parses dates and RFC 3339 timestamps. yaml.v3 hands unquoted
// timestamps to map[string]any as strings.
func timeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return generic.ParseDate(v)
	case time.Time:
		return v.UTC(), nil
	default:
		return data, nil
	}
}

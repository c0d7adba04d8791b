package factory

import (
	"fmt"
	"sort"

	"github.com/warp/b2b-engine/generic"
)

// Scenario is a named fixture document.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Document    string `json:"-"`
}

// Fixtures parses the scenario document.
func (s Scenario) Fixtures() (*Fixtures, error) {
	fx, err := Parse([]byte(s.Document))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return fx, nil
}

var scenarios = map[string]Scenario{
	"quote-acceptance": {
		Name:        "quote-acceptance",
		Description: "Draft quote with line items, ready for process -> sent -> accept",
		Document: `
quotes:
  - id: q-accept
    name: Office chairs
    state: draft
    line_items:
      - {sku: CH-100, name: Task chair, quantity: 12, unit_price: "149.00"}
      - {sku: CH-ARM, name: Armrest kit, quantity: 12, unit_price: "19.50"}
`,
	},
	"quote-rejection": {
		Name:        "quote-rejection",
		Description: "Quote already replied to, ready to be declined and reopened",
		Document: `
quotes:
  - id: q-reject
    name: Standing desks
    state: replied
    line_items:
      - {sku: DK-200, name: Standing desk, quantity: 5, unit_price: "620.00"}
`,
	},
	"budget-exceed": {
		Name:        "budget-exceed",
		Description: "Monthly budget at 90% with an 80% notification threshold",
		Document: `
budgets:
  - id: b-exceed
    name: Marketing
    amount: "100"
    used_amount: "90"
    renews_type: monthly
    last_renewal: 2024-01-01
    notify: true
    notification_config: {type: percentage, value: 80}
recipients:
  b-exceed:
    - {id: u-1, email: finance@example.com}
`,
	},
	"monthly-renewal": {
		Name:        "monthly-renewal",
		Description: "Monthly budget last renewed 2024-01-15, for time passage simulation",
		Document: `
budgets:
  - id: b-monthly
    name: Software
    amount: "5000"
    used_amount: "1250"
    renews_type: monthly
    last_renewal: 2024-01-15
    notify: true
    sent: true
    notification_config: {type: amount, value: "4000"}
`,
	},
	"approval-flow": {
		Name:        "approval-flow",
		Description: "Pending order awaiting approval and conversion",
		Document: `
pending_orders:
  - id: po-approve
    customer_id: acme
    state: pending
    line_items:
      - {sku: LT-14, name: Laptop, quantity: 3, unit_price: "1299.00"}
`,
	},
}

// Scenarios lists the built-in scenarios ordered by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupScenario returns the named scenario.
func LookupScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, &generic.NotFoundError{Kind: "scenario", ID: generic.EntityID(name)}
	}
	return s, nil
}

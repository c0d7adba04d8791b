package approval

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
)

type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateDeclined State = "declined"
	StateOrdered  State = "ordered"
)

func States() []State {
	return []State{StatePending, StateApproved, StateDeclined, StateOrdered}
}

func ParseState(s string) (State, error) {
	for _, st := range States() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown pending order state %q", generic.ErrInvalidInput, s)
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
	ActionOrder   Action = "order"
)

// PendingOrder is a purchase awaiting approval before it becomes an order.
type PendingOrder struct {
	ID            generic.EntityID   `json:"id"`
	CustomerID    string             `json:"customer_id,omitempty"`
	State         State              `json:"state"`
	LineItems     []generic.LineItem `json:"line_items"`
	ApprovedBy    string             `json:"approved_by,omitempty"`
	DeclineReason string             `json:"decline_reason,omitempty"`
	OrderID       string             `json:"order_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (p PendingOrder) Total() decimal.Decimal {
	return generic.LineItemsTotal(p.LineItems)
}

func (p PendingOrder) StateName() string {
	return string(p.State)
}

// Order is what an approved pending order converts into.
type Order struct {
	ID             string             `json:"id"`
	PendingOrderID generic.EntityID   `json:"pending_order_id"`
	CustomerID     string             `json:"customer_id,omitempty"`
	LineItems      []generic.LineItem `json:"line_items"`
	Total          decimal.Decimal    `json:"total"`
	PlacedAt       time.Time          `json:"placed_at"`
}

// Conversion is the outcome of ConvertToOrder.
type Conversion struct {
	Order        Order        `json:"order"`
	PendingOrder PendingOrder `json:"pending_order"`
}

package quote

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/b2b-engine/generic"
)

// =============================================================================
// STATES
// =============================================================================

type State string

const (
	StateDraft    State = "draft"
	StateOpen     State = "open"
	StateReplied  State = "replied"
	StateInReview State = "in_review"
	StateAccepted State = "accepted"
	StateDeclined State = "declined"
	StateExpired  State = "expired"
)

// States lists every quote state in declaration order.
func States() []State {
	return []State{StateDraft, StateOpen, StateReplied, StateInReview, StateAccepted, StateDeclined, StateExpired}
}

// IsTerminal is true for accepted, declined and expired.
func (s State) IsTerminal() bool {
	switch s {
	case StateAccepted, StateDeclined, StateExpired:
		return true
	default:
		return false
	}
}

// ParseState maps a technical name to a State.
func ParseState(s string) (State, error) {
	for _, st := range States() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown quote state %q", generic.ErrInvalidInput, s)
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionProcess       Action = "process"
	ActionSent          Action = "sent"
	ActionAccept        Action = "accept"
	ActionDecline       Action = "decline"
	ActionRequestChange Action = "request_change"
	ActionExpire        Action = "expire"
	ActionReopen        Action = "reopen"
)

// =============================================================================
// QUOTE
// =============================================================================

// Quote is a negotiated offer moving through the quote lifecycle.
type Quote struct {
	ID        generic.EntityID   `json:"id"`
	Name      string             `json:"name,omitempty"`
	State     State              `json:"state"`
	LineItems []generic.LineItem `json:"line_items"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Total sums the line items.
func (q Quote) Total() decimal.Decimal {
	return generic.LineItemsTotal(q.LineItems)
}

// StateName satisfies the SQL store's state column extraction.
func (q Quote) StateName() string {
	return string(q.State)
}

/*
Package quote drives quotes through their negotiation lifecycle.

QUOTE GRAPH:

  draft --process--> open --sent--> replied --accept--> accepted
                                      |  ^
                       request_change |  | sent
                                      v  |
                                    in_review

  replied --decline--> declined
  draft|open|replied|in_review --expire--> expired
  declined|expired --reopen--> open

WORKFLOWS:
  SimulateFullAcceptanceWorkflow:  process -> sent -> accept
  SimulateNegotiationWorkflow:     process -> sent -> request_change -> sent -> accept

  A workflow stops at the first failing step and returns that error. The
  steps before it have already been stored; nothing is rolled back.

CONVERSION:
  A quote converts to an order only when it is accepted AND has line items.
  That gate sits on top of the graph, not inside it.
*/
package quote

import (
	"context"
	"fmt"

	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

const entityName = "quote"

var engine = generic.MustEngine("quote", States(), []generic.Rule[State, Action]{
	{From: StateDraft, Action: ActionProcess, To: StateOpen},
	{From: StateOpen, Action: ActionSent, To: StateReplied},
	{From: StateInReview, Action: ActionSent, To: StateReplied},
	{From: StateReplied, Action: ActionAccept, To: StateAccepted},
	{From: StateReplied, Action: ActionDecline, To: StateDeclined},
	{From: StateReplied, Action: ActionRequestChange, To: StateInReview},
	{From: StateDraft, Action: ActionExpire, To: StateExpired},
	{From: StateOpen, Action: ActionExpire, To: StateExpired},
	{From: StateReplied, Action: ActionExpire, To: StateExpired},
	{From: StateInReview, Action: ActionExpire, To: StateExpired},
	{From: StateDeclined, Action: ActionReopen, To: StateOpen},
	{From: StateExpired, Action: ActionReopen, To: StateOpen},
})

// Engine exposes the quote transition table.
func Engine() *generic.Engine[State, Action] {
	return engine
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Lifecycle applies quote transitions and persists them through a store.
// Calls for one quote serialize only when a Locker is configured.
type Lifecycle struct {
	store generic.EntityStore[Quote]
	opts  generic.Options
}

// NewLifecycle persists quotes through store.
func NewLifecycle(store generic.EntityStore[Quote], opts ...generic.Option) *Lifecycle {
	return &Lifecycle{store: store, opts: generic.NewOptions(opts...)}
}

// Transition is the pure table lookup.
func (l *Lifecycle) Transition(from State, action Action) (State, error) {
	return engine.Transition(from, action)
}

// AvailableTransitions lists the actions defined from a state, sorted.
func (l *Lifecycle) AvailableTransitions(from State) []Action {
	return engine.AvailableTransitions(from)
}

// Create stores a new quote. An empty state defaults to draft.
func (l *Lifecycle) Create(ctx context.Context, q Quote) (Quote, error) {
	if q.State == "" {
		q.State = StateDraft
	}
	if _, err := ParseState(string(q.State)); err != nil {
		return Quote{}, err
	}
	now := l.opts.Clock.Now()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if err := l.store.Save(ctx, q.ID, q); err != nil {
		return Quote{}, fmt.Errorf("save quote %s: %w", q.ID, err)
	}
	return q, nil
}

// Get loads one quote, generic.ErrNotFound when unknown.
func (l *Lifecycle) Get(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.store.Load(ctx, id)
}

// List returns every stored quote, or only those in state when it is set.
func (l *Lifecycle) List(ctx context.Context, state State) ([]Quote, error) {
	if state == "" {
		return l.store.List(ctx)
	}
	return generic.ListInState(ctx, l.store, string(state))
}

// Apply loads the quote, applies action, stores the new state and returns
// the quote as reloaded from the store. With a Locker configured the whole
// cycle holds the quote's lock.
func (l *Lifecycle) Apply(ctx context.Context, id generic.EntityID, action Action) (Quote, error) {
	var result Quote
	err := l.opts.Locked(ctx, "quote:"+string(id), func() error {
		var err error
		result, err = l.apply(ctx, id, action)
		return err
	})
	return result, err
}

func (l *Lifecycle) apply(ctx context.Context, id generic.EntityID, action Action) (Quote, error) {
	q, err := l.store.Load(ctx, id)
	if err != nil {
		return Quote{}, fmt.Errorf("load quote %s: %w", id, err)
	}

	from := q.State
	next, err := engine.Transition(from, action)
	l.opts.Observer.ObserveTransition(engine.Name(), string(action), err)
	if err != nil {
		l.opts.Logger.Debug("quote transition rejected",
			zap.String("quote_id", string(id)),
			zap.String("state", string(from)),
			zap.String("action", string(action)),
			zap.Error(err))
		return q, err
	}

	q.State = next
	q.UpdatedAt = l.opts.Clock.Now()
	if err := l.store.Save(ctx, id, q); err != nil {
		return Quote{}, fmt.Errorf("save quote %s: %w", id, err)
	}

	l.opts.Logger.Info("quote transitioned",
		zap.String("quote_id", string(id)),
		zap.String("from", string(from)),
		zap.String("action", string(action)),
		zap.String("to", string(next)))

	return l.store.Load(ctx, id)
}

// Process moves a draft quote to open.
func (l *Lifecycle) Process(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionProcess)
}

// Send moves an open or in-review quote to replied.
func (l *Lifecycle) Send(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionSent)
}

// Accept closes a replied quote as accepted.
func (l *Lifecycle) Accept(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionAccept)
}

// Decline closes a replied quote. It can be reopened.
func (l *Lifecycle) Decline(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionDecline)
}

// RequestChange sends a replied quote back to in review.
func (l *Lifecycle) RequestChange(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionRequestChange)
}

// Expire closes any non-terminal quote.
func (l *Lifecycle) Expire(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionExpire)
}

// Reopen moves a declined or expired quote back to open.
func (l *Lifecycle) Reopen(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.Apply(ctx, id, ActionReopen)
}

// =============================================================================
// WORKFLOWS
// =============================================================================

// SimulateFullAcceptanceWorkflow applies process, sent, accept.
func (l *Lifecycle) SimulateFullAcceptanceWorkflow(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.run(ctx, id, ActionProcess, ActionSent, ActionAccept)
}

// SimulateNegotiationWorkflow applies process, sent, request_change, sent, accept.
func (l *Lifecycle) SimulateNegotiationWorkflow(ctx context.Context, id generic.EntityID) (Quote, error) {
	return l.run(ctx, id, ActionProcess, ActionSent, ActionRequestChange, ActionSent, ActionAccept)
}

// run applies actions in order. On failure it returns the quote as of the
// last successful step together with the step's error.
func (l *Lifecycle) run(ctx context.Context, id generic.EntityID, actions ...Action) (Quote, error) {
	current, err := l.store.Load(ctx, id)
	if err != nil {
		return Quote{}, fmt.Errorf("load quote %s: %w", id, err)
	}
	for i, a := range actions {
		next, err := l.Apply(ctx, id, a)
		if err != nil {
			return current, fmt.Errorf("step %d (%s): %w", i+1, a, err)
		}
		current = next
	}
	return current, nil
}

// =============================================================================
// CONVERSION GATING
// =============================================================================

// CanConvertToOrder returns true for an accepted quote with line items.
// Otherwise it returns an *InvalidStateError or *EmptyLineItemsError.
func CanConvertToOrder(q Quote) (bool, error) {
	if q.State != StateAccepted {
		return false, &generic.InvalidStateError{
			Entity: entityName,
			ID:     q.ID,
			Have:   string(q.State),
			Want:   string(StateAccepted),
		}
	}
	if len(q.LineItems) == 0 {
		return false, &generic.EmptyLineItemsError{Entity: entityName, ID: q.ID}
	}
	return true, nil
}

// CanConvertToOrder loads the quote and applies the conversion gate.
func (l *Lifecycle) CanConvertToOrder(ctx context.Context, id generic.EntityID) (bool, error) {
	q, err := l.store.Load(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load quote %s: %w", id, err)
	}
	return CanConvertToOrder(q)
}

/*
Package approval drives pending orders through approval into orders.

PENDING ORDER GRAPH:

  pending --approve--> approved --order--> ordered
     |
     +----decline----> declined

PRECONDITION:
  "order" is only legal from approved. From any other state the engine
  reports ErrPreconditionFailed rather than ErrNoSuchTransition, so callers
  can tell "not approved yet" apart from "no such action".

CONVERSION:
  ConvertToOrder checks that the pending order is approved (ErrInvalidState)
  and has line items (ErrEmptyLineItems), then applies "order" and returns
  the resulting Order.
*/
package approval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/b2b-engine/generic"
	"go.uber.org/zap"
)

const entityName = "pending order"

var engine = generic.MustEngine("approval", States(),
	[]generic.Rule[State, Action]{
		{From: StatePending, Action: ActionApprove, To: StateApproved},
		{From: StatePending, Action: ActionDecline, To: StateDeclined},
		{From: StateApproved, Action: ActionOrder, To: StateOrdered},
	},
	generic.WithPrecondition[State, Action](ActionOrder, "pending order must be approved",
		func(from State) bool { return from == StateApproved }),
)

// Engine exposes the pending order transition table.
func Engine() *generic.Engine[State, Action] {
	return engine
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Lifecycle applies pending order transitions under a per-order lock.
type Lifecycle struct {
	store generic.EntityStore[PendingOrder]
	opts  generic.Options
}

// NewLifecycle persists pending orders through store.
func NewLifecycle(store generic.EntityStore[PendingOrder], opts ...generic.Option) *Lifecycle {
	return &Lifecycle{store: store, opts: generic.NewOptions(opts...)}
}

// Transition is the pure table lookup. Guards are not evaluated.
func (l *Lifecycle) Transition(from State, action Action) (State, error) {
	return engine.Transition(from, action)
}

// AvailableTransitions lists the actions defined from a state, sorted.
func (l *Lifecycle) AvailableTransitions(from State) []Action {
	return engine.AvailableTransitions(from)
}

// Create stores a new pending order. An empty state defaults to pending.
func (l *Lifecycle) Create(ctx context.Context, p PendingOrder) (PendingOrder, error) {
	if p.State == "" {
		p.State = StatePending
	}
	if _, err := ParseState(string(p.State)); err != nil {
		return PendingOrder{}, err
	}
	now := l.opts.Clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := l.store.Save(ctx, p.ID, p); err != nil {
		return PendingOrder{}, fmt.Errorf("save pending order %s: %w", p.ID, err)
	}
	return p, nil
}

// Get loads one pending order, generic.ErrNotFound when unknown.
func (l *Lifecycle) Get(ctx context.Context, id generic.EntityID) (PendingOrder, error) {
	return l.store.Load(ctx, id)
}

// List returns every stored pending order, or only those in state when it is set.
func (l *Lifecycle) List(ctx context.Context, state State) ([]PendingOrder, error) {
	if state == "" {
		return l.store.List(ctx)
	}
	return generic.ListInState(ctx, l.store, string(state))
}

// Apply loads the pending order, applies action, stores it and returns the
// reloaded value.
func (l *Lifecycle) Apply(ctx context.Context, id generic.EntityID, action Action) (PendingOrder, error) {
	return l.apply(ctx, id, action, nil)
}

func (l *Lifecycle) apply(ctx context.Context, id generic.EntityID, action Action, mutate func(*PendingOrder)) (PendingOrder, error) {
	var result PendingOrder
	err := l.opts.Locked(ctx, lockKey(id), func() error {
		var err error
		result, err = l.applyLocked(ctx, id, action, mutate)
		return err
	})
	return result, err
}

func lockKey(id generic.EntityID) string {
	return "pending_order:" + string(id)
}

func (l *Lifecycle) applyLocked(ctx context.Context, id generic.EntityID, action Action, mutate func(*PendingOrder)) (PendingOrder, error) {
	p, err := l.store.Load(ctx, id)
	if err != nil {
		return PendingOrder{}, fmt.Errorf("load pending order %s: %w", id, err)
	}

	from := p.State
	next, err := engine.Transition(from, action)
	l.opts.Observer.ObserveTransition(engine.Name(), string(action), err)
	if err != nil {
		l.opts.Logger.Debug("pending order transition rejected",
			zap.String("pending_order_id", string(id)),
			zap.String("state", string(from)),
			zap.String("action", string(action)),
			zap.Error(err))
		return p, err
	}

	p.State = next
	p.UpdatedAt = l.opts.Clock.Now()
	if mutate != nil {
		mutate(&p)
	}
	if err := l.store.Save(ctx, id, p); err != nil {
		return PendingOrder{}, fmt.Errorf("save pending order %s: %w", id, err)
	}

	l.opts.Logger.Info("pending order transitioned",
		zap.String("pending_order_id", string(id)),
		zap.String("from", string(from)),
		zap.String("action", string(action)),
		zap.String("to", string(next)))

	return l.store.Load(ctx, id)
}

// Approve records approverID on success.
func (l *Lifecycle) Approve(ctx context.Context, id generic.EntityID, approverID string) (PendingOrder, error) {
	return l.apply(ctx, id, ActionApprove, func(p *PendingOrder) {
		p.ApprovedBy = approverID
	})
}

// Decline records reason on success.
func (l *Lifecycle) Decline(ctx context.Context, id generic.EntityID, reason string) (PendingOrder, error) {
	return l.apply(ctx, id, ActionDecline, func(p *PendingOrder) {
		p.DeclineReason = reason
	})
}

// Order applies the guarded order action without building an Order.
// Use ConvertToOrder for the gated conversion.
func (l *Lifecycle) Order(ctx context.Context, id generic.EntityID) (PendingOrder, error) {
	return l.Apply(ctx, id, ActionOrder)
}

// =============================================================================
// CONVERSION
// =============================================================================

// ConvertToOrder turns an approved pending order with line items into an Order.
// The gate checks and the order transition run under one lock.
func (l *Lifecycle) ConvertToOrder(ctx context.Context, id generic.EntityID) (Conversion, error) {
	var conv Conversion
	err := l.opts.Locked(ctx, lockKey(id), func() error {
		var err error
		conv, err = l.convert(ctx, id)
		return err
	})
	return conv, err
}

func (l *Lifecycle) convert(ctx context.Context, id generic.EntityID) (Conversion, error) {
	p, err := l.store.Load(ctx, id)
	if err != nil {
		return Conversion{}, fmt.Errorf("load pending order %s: %w", id, err)
	}
	if p.State != StateApproved {
		return Conversion{}, &generic.InvalidStateError{
			Entity: entityName,
			ID:     id,
			Have:   string(p.State),
			Want:   string(StateApproved),
		}
	}
	if len(p.LineItems) == 0 {
		return Conversion{}, &generic.EmptyLineItemsError{Entity: entityName, ID: id}
	}

	order := Order{
		ID:             uuid.NewString(),
		PendingOrderID: id,
		CustomerID:     p.CustomerID,
		LineItems:      append([]generic.LineItem(nil), p.LineItems...),
		Total:          p.Total(),
		PlacedAt:       l.opts.Clock.Now(),
	}

	updated, err := l.applyLocked(ctx, id, ActionOrder, func(p *PendingOrder) {
		p.OrderID = order.ID
	})
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Order: order, PendingOrder: updated}, nil
}

// SimulateApprovalWorkflow approves the pending order and converts it.
// A failed conversion leaves the approval in place.
func (l *Lifecycle) SimulateApprovalWorkflow(ctx context.Context, id generic.EntityID, approverID string) (Conversion, error) {
	if _, err := l.Approve(ctx, id, approverID); err != nil {
		return Conversion{}, fmt.Errorf("approve: %w", err)
	}
	conv, err := l.ConvertToOrder(ctx, id)
	if err != nil {
		return Conversion{}, fmt.Errorf("convert: %w", err)
	}
	return conv, nil
}

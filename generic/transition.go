/*
transition.go - Table-driven state machine

PURPOSE:
  The Engine validates and applies a named action against an entity's
  current state, using a static transition table built once per lifecycle.
  It is a pure function of (state, action) -> new state or error.

TABLE CONTRACT:
  - Every (state, action) pair maps to AT MOST ONE target state.
    NewEngine rejects tables that violate this with ErrDuplicateRule.
  - Applying an action that is not in the table for the current state is
    an error (ErrNoSuchTransition), never a silent no-op.
  - Rules keep their declaration order; AvailableTransitions reports
    actions in that order.

PRECONDITIONS:
  An action may carry a precondition (guard). The guard is consulted both
  when the pair is in the table and when it is not:

    pair present, guard passes   -> target state
    pair present, guard fails    -> ErrPreconditionFailed
    pair absent,  guard fails    -> ErrPreconditionFailed
    pair absent,  no guard/passes-> ErrNoSuchTransition

  This lets a lifecycle say "ordering requires an approved pending order"
  and report that violation distinctly from a plain table miss.

PERSISTENCE:
  None. The caller stores the returned state through its EntityStore.

EXAMPLE:
  engine := generic.MustEngine("door",
      []Door{Closed, Open},
      []generic.Rule[Door, Verb]{
          {From: Closed, Action: OpenIt, To: Open},
          {From: Open, Action: CloseIt, To: Closed},
      })
  next, err := engine.Transition(Closed, OpenIt) // Open, nil

SEE ALSO:
  - quote/lifecycle.go: Quote graph
  - approval/lifecycle.go: Pending order graph with the order guard
*/
package generic

import "fmt"

// =============================================================================
// RULES
// =============================================================================

// Rule is a single edge in a lifecycle graph.
type Rule[S ~string, A ~string] struct {
	From   S
	Action A
	To     S
}

// Precondition guards an action. Check returns false when the action must
// not be applied from the given state.
type Precondition[S ~string] struct {
	Description string
	Check       func(from S) bool
}

type edge[S ~string, A ~string] struct {
	from   S
	action A
}

// EngineOption configures an Engine at construction time.
type EngineOption[S ~string, A ~string] func(*Engine[S, A])

// WithPrecondition registers a guard for action.
func WithPrecondition[S ~string, A ~string](action A, description string, check func(from S) bool) EngineOption[S, A] {
	return func(e *Engine[S, A]) {
		e.guards[action] = Precondition[S]{Description: description, Check: check}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is an immutable transition table. Safe for concurrent use.
type Engine[S ~string, A ~string] struct {
	name    string
	states  []S
	actions []A
	rules   []Rule[S, A]
	index   map[edge[S, A]]S
	guards  map[A]Precondition[S]
}

// NewEngine builds an engine for the named lifecycle.
// Every rule must reference declared states, and no (From, Action) pair
// may appear twice.
func NewEngine[S ~string, A ~string](name string, states []S, rules []Rule[S, A], opts ...EngineOption[S, A]) (*Engine[S, A], error) {
	e := &Engine[S, A]{
		name:   name,
		states: append([]S(nil), states...),
		rules:  append([]Rule[S, A](nil), rules...),
		index:  make(map[edge[S, A]]S, len(rules)),
		guards: make(map[A]Precondition[S]),
	}

	known := make(map[S]bool, len(states))
	for _, s := range states {
		known[s] = true
	}

	seenAction := make(map[A]bool)
	for _, r := range rules {
		if !known[r.From] || !known[r.To] {
			return nil, fmt.Errorf("%s: rule %s -%s-> %s references an undeclared state", name, r.From, r.Action, r.To)
		}
		k := edge[S, A]{from: r.From, action: r.Action}
		if _, dup := e.index[k]; dup {
			return nil, fmt.Errorf("%w: %s: (%s, %s)", ErrDuplicateRule, name, r.From, r.Action)
		}
		e.index[k] = r.To
		if !seenAction[r.Action] {
			seenAction[r.Action] = true
			e.actions = append(e.actions, r.Action)
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	for a := range e.guards {
		if !seenAction[a] {
			return nil, fmt.Errorf("%s: precondition registered for unknown action %q", name, a)
		}
	}
	return e, nil
}

// MustEngine is NewEngine for package-level tables; it panics on a bad table.
func MustEngine[S ~string, A ~string](name string, states []S, rules []Rule[S, A], opts ...EngineOption[S, A]) *Engine[S, A] {
	e, err := NewEngine(name, states, rules, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine[S, A]) Name() string { return e.name }

// States returns the declared states in declaration order.
func (e *Engine[S, A]) States() []S { return append([]S(nil), e.states...) }

// Actions returns every action that appears in the table, in first-use order.
func (e *Engine[S, A]) Actions() []A { return append([]A(nil), e.actions...) }

// Rules returns the table in declaration order.
func (e *Engine[S, A]) Rules() []Rule[S, A] { return append([]Rule[S, A](nil), e.rules...) }

// Precondition returns the guard registered for action, if any.
func (e *Engine[S, A]) Precondition(action A) (Precondition[S], bool) {
	p, ok := e.guards[action]
	return p, ok
}

// Transition applies action to from. On failure it returns from unchanged
// together with a *TransitionError.
func (e *Engine[S, A]) Transition(from S, action A) (S, error) {
	guard, guarded := e.guards[action]
	to, ok := e.index[edge[S, A]{from: from, action: action}]

	if guarded && !guard.Check(from) {
		return from, e.fail(from, action, ErrPreconditionFailed, guard.Description)
	}
	if !ok {
		return from, e.fail(from, action, ErrNoSuchTransition, "")
	}
	return to, nil
}

// Can reports whether Transition(from, action) would succeed.
func (e *Engine[S, A]) Can(from S, action A) bool {
	_, err := e.Transition(from, action)
	return err == nil
}

// AvailableTransitions lists the actions that succeed from the given state,
// in declaration order.
func (e *Engine[S, A]) AvailableTransitions(from S) []A {
	var out []A
	for _, r := range e.rules {
		if r.From != from {
			continue
		}
		if g, ok := e.guards[r.Action]; ok && !g.Check(from) {
			continue
		}
		out = append(out, r.Action)
	}
	return out
}

func (e *Engine[S, A]) fail(from S, action A, sentinel error, reason string) error {
	return &TransitionError{
		Lifecycle: e.name,
		From:      string(from),
		Action:    string(action),
		Reason:    reason,
		Err:       sentinel,
	}
}

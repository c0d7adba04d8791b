/*
errors.go - Centralized error types for the workflow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (quote, approval, budget) return these errors, usually
  wrapped with additional context via fmt.Errorf("...: %w", err).

ERROR CATEGORIES:
  1. Transition errors - Action undefined for a state, or guard rejected it
  2. Gating errors     - Conversion attempted from the wrong state or with
                         no line items
  3. Store errors      - Collaborator lookups that found nothing
  4. Input errors      - Malformed amounts, cadences, rule tables

USAGE:
  Callers classify with errors.Is / errors.As:

    if errors.Is(err, generic.ErrPreconditionFailed) {
        // action exists, but the entity is not ready for it
    }

    var te *generic.TransitionError
    if errors.As(err, &te) {
        log.Printf("%s: %s cannot %s", te.Lifecycle, te.From, te.Action)
    }

  Nothing in the engine retries. Retry and compensation belong to the caller.

SEE ALSO:
  - transition.go: Produces TransitionError
  - quote/lifecycle.go, approval/lifecycle.go: Produce gating errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoSuchTransition is returned when an action is not defined for the
	// entity's current state.
	ErrNoSuchTransition = errors.New("no such transition")

	// ErrPreconditionFailed is returned when an action is defined but its
	// guard rejects the current state (e.g. ordering a non-approved pending order).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidState is returned when a terminal-state precondition is not met
	// (e.g. converting a quote that was never accepted).
	ErrInvalidState = errors.New("invalid state")

	// ErrEmptyLineItems is returned when conversion is attempted with no line items.
	ErrEmptyLineItems = errors.New("empty line items")

	// ErrNotFound is returned by collaborators when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateRule is returned when a transition table maps the same
	// (state, action) pair twice.
	ErrDuplicateRule = errors.New("duplicate transition rule")

	// ErrInvalidAmount is returned for negative or otherwise unusable amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownCadence is returned when a renewal cadence name is not recognized.
	ErrUnknownCadence = errors.New("unknown renewal cadence")

	// ErrInvalidInput is returned for malformed entities (missing id, bad state name).
	ErrInvalidInput = errors.New("invalid input")

	// ErrLockNotAcquired is returned when an entity lock could not be taken.
	ErrLockNotAcquired = errors.New("entity lock not acquired")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError describes a rejected transition.
// Err is either ErrNoSuchTransition or ErrPreconditionFailed.
type TransitionError struct {
	Lifecycle string
	From      string
	Action    string
	Reason    string
	Err       error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot apply %q from state %q: %v", e.Lifecycle, e.Action, e.From, e.Err)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// InvalidStateError reports an entity that is not in the state a gate requires.
type InvalidStateError struct {
	Entity string
	ID     EntityID
	Have   string
	Want   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %q, must be %q", e.Entity, e.ID, e.Have, e.Want)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// EmptyLineItemsError reports a conversion attempted on an entity with no items.
type EmptyLineItemsError struct {
	Entity string
	ID     EntityID
}

func (e *EmptyLineItemsError) Error() string {
	return fmt.Sprintf("%s %s has no line items", e.Entity, e.ID)
}

func (e *EmptyLineItemsError) Unwrap() error {
	return ErrEmptyLineItems
}

// NotFoundError is the collaborator-side lookup failure.
type NotFoundError struct {
	Kind string
	ID   EntityID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTransitionError returns true if the error came from the transition table
// or one of its guards.
func IsTransitionError(err error) bool {
	return errors.Is(err, ErrNoSuchTransition) ||
		errors.Is(err, ErrPreconditionFailed)
}

// IsGatingError returns true if a conversion gate rejected the entity.
func IsGatingError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrEmptyLineItems)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsTransitionError(err) ||
		IsGatingError(err) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownCadence)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

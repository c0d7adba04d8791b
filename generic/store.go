/*
store.go - Collaborator interfaces

PURPOSE:
  The engine never persists anything itself. It reads and writes through
  these narrow interfaces, which the surrounding system implements.

KEY INTERFACES:
  EntityStore[T]:    Typed load/save of quotes, pending orders, budgets
  StateLister[T]:    Optional state filter a store can push down to SQL
  RecipientResolver: Who receives a budget notification
  Locker:            Per-entity serialization for callers that mutate
                     the same entity from several goroutines or processes
  Observer:          Hooks for metrics

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, for tests and the simulate command
  - store/sqldb: SQLite / PostgreSQL
  - store/redis: Distributed Locker

SEE ALSO:
  - ledger.go: UsageLog, the remaining collaborator
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITY STORE
// =============================================================================

// EntityStore loads and saves entities of one kind.
// Load returns an error matching ErrNotFound when id is unknown.
type EntityStore[T any] interface {
	Load(ctx context.Context, id EntityID) (T, error)
	Save(ctx context.Context, id EntityID, v T) error
	List(ctx context.Context) ([]T, error)
}

// StateLister is implemented by stores that can filter lifecycle entities
// by state without decoding every row.
type StateLister[T any] interface {
	ListByState(ctx context.Context, state string) ([]T, error)
}

// ListInState returns the entities of store in state. It uses the store's
// own filter when it has one and filters List otherwise.
func ListInState[T interface{ StateName() string }](ctx context.Context, store EntityStore[T], state string) ([]T, error) {
	if sl, ok := store.(StateLister[T]); ok {
		return sl.ListByState(ctx, state)
	}
	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []T
	for _, v := range all {
		if v.StateName() == state {
			result = append(result, v)
		}
	}
	return result, nil
}

// =============================================================================
// RECIPIENTS
// =============================================================================

// RecipientResolver lists who should be notified about a budget.
type RecipientResolver interface {
	ResolveRecipients(ctx context.Context, budgetID EntityID) ([]Recipient, error)
}

// RecipientResolverFunc adapts a function to RecipientResolver.
type RecipientResolverFunc func(ctx context.Context, budgetID EntityID) ([]Recipient, error)

func (f RecipientResolverFunc) ResolveRecipients(ctx context.Context, budgetID EntityID) ([]Recipient, error) {
	return f(ctx, budgetID)
}

// =============================================================================
// LOCKER - Serializes mutations of one entity
// =============================================================================

// UnlockFunc releases a lock taken by Locker.Lock.
type UnlockFunc func(ctx context.Context) error

// Locker takes an exclusive lock keyed by entity id.
// Lock blocks until the lock is held, ctx is done, or the implementation
// gives up; ttl bounds how long a crashed holder can keep it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// =============================================================================
// OBSERVER - Metrics hooks
// =============================================================================

// Observer is notified after engine operations complete.
type Observer interface {
	ObserveTransition(lifecycle, action string, err error)
	ObserveUsage(budgetID EntityID, amount decimal.Decimal)
	ObserveRenewal(budgetID EntityID)
	ObserveNotification(budgetID EntityID)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) ObserveTransition(string, string, error) {}
func (NopObserver) ObserveUsage(EntityID, decimal.Decimal) {}
func (NopObserver) ObserveRenewal(EntityID) {}
func (NopObserver) ObserveNotification(EntityID) {}

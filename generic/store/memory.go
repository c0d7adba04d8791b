// Package store provides in-memory collaborator implementations.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/b2b-engine/generic"
)

// =============================================================================
// MEMORY ENTITY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a generic.EntityStore backed by a map.
// Values are stored by copy; callers that mutate pointer fields of a loaded
// value should replace the pointer instead of writing through it.
type Memory[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[generic.EntityID]T
	order []generic.EntityID
}

// NewMemory creates an empty store. kind names the entity in NotFound errors.
func NewMemory[T any](kind string) *Memory[T] {
	return &Memory[T]{
		kind:  kind,
		items: make(map[generic.EntityID]T),
	}
}

func (m *Memory[T]) Load(_ context.Context, id generic.EntityID) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[id]
	if !ok {
		var zero T
		return zero, &generic.NotFoundError{Kind: m.kind, ID: id}
	}
	return v, nil
}

func (m *Memory[T]) Save(_ context.Context, id generic.EntityID, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		m.order = append(m.order, id)
	}
	m.items[id] = v
	return nil
}

// List returns entities in first-save order.
func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]T, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.items[id])
	}
	return result, nil
}

// Reset drops every entity.
func (m *Memory[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[generic.EntityID]T)
	m.order = nil
}

// =============================================================================
// USAGE LOG
// =============================================================================

// UsageLog is a process-local generic.UsageLog.
type UsageLog struct {
	mu  sync.RWMutex
	txs map[generic.EntityID][]generic.UsageTransaction
}

func NewUsageLog() *UsageLog {
	return &UsageLog{txs: make(map[generic.EntityID][]generic.UsageTransaction)}
}

// Append adds a transaction. Append-only.
func (l *UsageLog) Append(_ context.Context, tx generic.UsageTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[tx.BudgetID] = append(l.txs[tx.BudgetID], tx)
	return nil
}

func (l *UsageLog) Transactions(_ context.Context, budgetID generic.EntityID) ([]generic.UsageTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]generic.UsageTransaction, len(l.txs[budgetID]))
	copy(result, l.txs[budgetID])
	return result, nil
}

func (l *UsageLog) Clear(_ context.Context, budgetID generic.EntityID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.txs, budgetID)
	return nil
}

func (l *UsageLog) ClearAll(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = make(map[generic.EntityID][]generic.UsageTransaction)
	return nil
}

// =============================================================================
// LOCKER - In-process keyed mutex
// =============================================================================

// Locker serializes callers within one process. The ttl argument is ignored:
// a lock lives until its UnlockFunc runs.
type Locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (generic.UnlockFunc, error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", generic.ErrLockNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}

// =============================================================================
// STATIC RECIPIENTS
// =============================================================================

// Recipients is a fixed budget -> recipients table.
type Recipients struct {
	mu    sync.RWMutex
	table map[generic.EntityID][]generic.Recipient
}

func NewRecipients() *Recipients {
	return &Recipients{table: make(map[generic.EntityID][]generic.Recipient)}
}

// Set replaces the recipients of a budget.
func (r *Recipients) Set(budgetID generic.EntityID, recipients ...generic.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[budgetID] = append([]generic.Recipient(nil), recipients...)
}

// ResolveRecipients returns an empty list for unknown budgets.
func (r *Recipients) ResolveRecipients(_ context.Context, budgetID generic.EntityID) ([]generic.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]generic.Recipient{}, r.table[budgetID]...), nil
}

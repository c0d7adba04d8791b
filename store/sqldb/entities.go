package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/b2b-engine/generic"
)

// stateNamer is implemented by lifecycle entities so their state can be
// queried without decoding the payload.
type stateNamer interface {
	StateName() string
}

// EntityStore is a generic.EntityStore[T] over the entities table.
// T is stored as its JSON encoding.
type EntityStore[T any] struct {
	s    *Store
	kind string
}

func NewEntityStore[T any](s *Store, kind string) *EntityStore[T] {
	return &EntityStore[T]{s: s, kind: kind}
}

func (e *EntityStore[T]) Load(ctx context.Context, id generic.EntityID) (T, error) {
	var zero T
	var payload string
	err := e.s.queryRow(ctx,
		`SELECT payload FROM entities WHERE kind = ? AND id = ?`,
		e.kind, string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, &generic.NotFoundError{Kind: e.kind, ID: id}
	}
	if err != nil {
		return zero, fmt.Errorf("load %s %s: %w", e.kind, id, err)
	}

	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return zero, fmt.Errorf("decode %s %s: %w", e.kind, id, err)
	}
	return v, nil
}

func (e *EntityStore[T]) Save(ctx context.Context, id generic.EntityID, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", e.kind, id, err)
	}
	var state string
	if sn, ok := any(v).(stateNamer); ok {
		state = sn.StateName()
	}

	_, err = e.s.exec(ctx, `
		INSERT INTO entities (kind, id, state, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.kind, string(id), state, string(payload), formatTime(e.s.opts.Clock.Now()))
	if err != nil {
		return fmt.Errorf("save %s %s: %w", e.kind, id, err)
	}
	return nil
}

// List returns every entity of this kind in first-save order.
func (e *EntityStore[T]) List(ctx context.Context) ([]T, error) {
	return e.list(ctx, `SELECT payload FROM entities WHERE kind = ? ORDER BY seq`, e.kind)
}

// ListByState returns entities of this kind currently in state.
func (e *EntityStore[T]) ListByState(ctx context.Context, state string) ([]T, error) {
	return e.list(ctx, `SELECT payload FROM entities WHERE kind = ? AND state = ? ORDER BY seq`, e.kind, state)
}

func (e *EntityStore[T]) list(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := e.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", e.kind, err)
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.kind, err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Package npcstore persists entity records per scope (a zone, map or route).
//
// [Store] is the persistence contract the editor core depends on. Four
// implementations are provided: [MemStore] for tests and scratch sessions,
// [FileStore] for one YAML file per scope, [SQLiteStore] and [PostgresStore].
// [Guarded] wraps any of them with a circuit breaker, tracing and metrics.
//
// Every backend failure is returned wrapped in [ErrPersistence] so callers can
// tell persistence problems apart from programming errors.
package npcstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/npcforge/internal/record"
)

var (
	// ErrPersistence wraps every failure of the storage backend.
	ErrPersistence = errors.New("npcstore: persistence failure")

	// ErrInvalidRecord is returned for records without an id or for empty
	// scope names. It is a caller error, not a backend failure.
	ErrInvalidRecord = errors.New("npcstore: invalid record")
)

// Store provides per-scope entity persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListEntities returns the entities of scope in a stable order: the order
	// in which they were first saved. An unknown scope is empty, not an error.
	ListEntities(ctx context.Context, scope string) ([]record.Record, error)

	// SaveEntity creates or replaces the entity with rec's id in scope.
	// Replacing keeps the entity's position in the list.
	SaveEntity(ctx context.Context, scope string, rec record.Record) error

	// DeleteEntity removes the entity with id from scope. Deleting an absent
	// entity is not an error.
	DeleteEntity(ctx context.Context, scope, id string) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// persistErr wraps a backend error with the operation and [ErrPersistence].
func persistErr(op string, err error) error {
	return fmt.Errorf("npcstore: %s: %w: %w", op, ErrPersistence, err)
}

// checkScope rejects blank scope names.
func checkScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return fmt.Errorf("%w: scope must not be empty", ErrInvalidRecord)
	}
	return nil
}

// checkRecord rejects records that cannot be keyed.
func checkRecord(scope string, rec record.Record) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID()) == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidRecord)
	}
	return nil
}

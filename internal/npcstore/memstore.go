package npcstore

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/npcforge/internal/record"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// scopeEntries keeps one scope's records in first-save order.
type scopeEntries struct {
	order []string
	byID  map[string]record.Record
}

// MemStore is a thread-safe, in-memory implementation of [Store].
// Records are copied on the way in and out, so callers never share state with
// the store. The zero value is ready to use.
type MemStore struct {
	mu     sync.RWMutex
	scopes map[string]*scopeEntries
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{scopes: make(map[string]*scopeEntries)}
}

// ListEntities implements [Store.ListEntities].
func (s *MemStore) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.scopes[scope]
	if !ok {
		return []record.Record{}, nil
	}
	out := make([]record.Record, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.byID[id].Clone())
	}
	return out, nil
}

// SaveEntity implements [Store.SaveEntity].
func (s *MemStore) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	if err := checkRecord(scope, rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scopes == nil {
		s.scopes = make(map[string]*scopeEntries)
	}
	e, ok := s.scopes[scope]
	if !ok {
		e = &scopeEntries{byID: make(map[string]record.Record)}
		s.scopes[scope] = e
	}
	id := rec.ID()
	if _, exists := e.byID[id]; !exists {
		e.order = append(e.order, id)
	}
	e.byID[id] = record.NormalizeRecord(rec)
	return nil
}

// DeleteEntity implements [Store.DeleteEntity].
func (s *MemStore) DeleteEntity(ctx context.Context, scope, id string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.scopes[scope]
	if !ok {
		return nil
	}
	if _, exists := e.byID[id]; !exists {
		return nil
	}
	delete(e.byID, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	return nil
}

// Scopes returns the names of all scopes holding at least one entity, sorted.
func (s *MemStore) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.scopes))
	for name, e := range s.scopes {
		if len(e.order) > 0 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

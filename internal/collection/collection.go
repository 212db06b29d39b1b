// Package collection owns the in-memory entity list of the scope being
// edited and reconciles it with the persistence backend.
//
// The backend is always called first; the list is only changed when the call
// succeeds. Every mutation is tagged with a generation number taken when the
// call starts, and a response that arrives after the scope changed or the
// manager was closed is discarded with [ErrStale].
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/wizard"
)

var (
	// ErrStale is returned when a backend response arrives for a scope that
	// is no longer active. The response has not been applied.
	ErrStale = errors.New("collection: response for inactive scope discarded")

	// ErrNotFound is returned for ids that are not in the current list.
	ErrNotFound = errors.New("collection: entity not found")

	// ErrNotConfirmed is returned by [Manager.Delete] when the confirmation
	// does not name the entity being deleted.
	ErrNotConfirmed = errors.New("collection: delete not confirmed")

	// ErrNoScope is returned when an operation needs a loaded scope.
	ErrNoScope = errors.New("collection: no scope loaded")
)

// Confirmation is the caller's explicit consent to delete one entity.
// Obtain one with [Confirm].
type Confirmation struct {
	id string
}

// Confirm records consent to delete the entity with id.
func Confirm(id string) Confirmation { return Confirmation{id: id} }

// Compile-time check: the manager persists what the wizard saves.
var _ wizard.Saver = (*Manager)(nil)

// Manager holds the entity list of one scope at a time.
// It is safe for concurrent use.
type Manager struct {
	store    npcstore.Store
	factory  *factory.Factory
	notifier notify.Notifier
	log      *slog.Logger

	mu       sync.Mutex
	scope    string
	gen      uint64
	closed   bool
	entities []record.Record
}

// Option configures a [Manager].
type Option func(*Manager)

// WithNotifier sets where outcomes are reported. Default: [notify.Discard].
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a manager with no scope loaded.
func New(store npcstore.Store, f *factory.Factory, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		factory:  f,
		notifier: notify.Discard,
		log:      slog.Default(),
		entities: []record.Record{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// LoadForScope makes scope the active scope and fetches its entities. The
// previous list is dropped immediately. On a backend failure the list stays
// empty, the failure is reported and the error is returned; a load overtaken
// by another LoadForScope or [Manager.Close] returns [ErrStale].
func (m *Manager) LoadForScope(ctx context.Context, scope string) ([]record.Record, error) {
	if strings.TrimSpace(scope) == "" {
		return []record.Record{}, fmt.Errorf("collection: %w: scope must not be empty", npcstore.ErrInvalidRecord)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.scope = scope
	m.closed = false
	m.entities = []record.Record{}
	m.mu.Unlock()

	recs, err := m.store.ListEntities(ctx, scope)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.Debug("discarding stale entity list", "scope", scope)
		return []record.Record{}, ErrStale
	}
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("failed to load entities", "scope", scope, "err", err)
		m.notifier.Notify(ctx, fmt.Sprintf("Could not load entities for %s: %v", scope, err), notify.LevelError)
		return []record.Record{}, fmt.Errorf("collection: load %s: %w", scope, err)
	}
	m.entities = cloneAll(recs)
	out := cloneAll(m.entities)
	m.mu.Unlock()

	m.log.Info("entities loaded", "scope", scope, "count", len(out))
	return out, nil
}

// Scope returns the active scope, or "" when none is loaded.
func (m *Manager) Scope() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ""
	}
	return m.scope
}

// Entities returns a copy of the current list.
func (m *Manager) Entities() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.entities)
}

// Get returns a copy of the entity with id.
func (m *Manager) Get(id string) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.entities[i].Clone(), nil
}

// CreateFrom returns a new draft of variant v. The draft is not part of the
// list until it is saved.
func (m *Manager) CreateFrom(v schema.Variant) (record.Record, error) {
	return m.factory.CreateDraft(v)
}

// EditExisting returns a copy of the entity with id for a wizard session.
func (m *Manager) EditExisting(id string) (record.Record, error) {
	return m.Get(id)
}

// Duplicate saves a copy of the entity with id under a new id and returns it.
func (m *Manager) Duplicate(ctx context.Context, id string) (record.Record, error) {
	src, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	dup := m.factory.Duplicate(src)
	if err := m.Save(ctx, dup); err != nil {
		return nil, err
	}
	return dup.Clone(), nil
}

// Save persists rec in the active scope, then replaces the entity with the
// same id in the list or appends it. A backend failure leaves the list
// unchanged; it is reported and returned, never retried.
//
// An entity keeps the variant it was created with: replacing it with a
// record of another type fails with [wizard.ErrVariantLocked] and the
// backend is not called.
func (m *Manager) Save(ctx context.Context, rec record.Record) error {
	scope, gen, err := m.active()
	if err != nil {
		return err
	}
	rec = record.NormalizeRecord(rec)
	if old, ok := m.lookup(rec.ID()); ok && old.Type() != rec.Type() {
		return fmt.Errorf("collection: save %s: %w: it is a %s entity", rec.ID(), wizard.ErrVariantLocked, old.Type())
	}

	if err := m.store.SaveEntity(ctx, scope, rec); err != nil {
		if m.isCurrent(gen) {
			m.notifier.Notify(ctx, fmt.Sprintf("Could not save %s: %v", displayName(rec), err), notify.LevelError)
		}
		m.log.Warn("failed to save entity", "scope", scope, "id", rec.ID(), "err", err)
		return fmt.Errorf("collection: save %s: %w", rec.ID(), err)
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		return ErrStale
	}
	if i := m.index(rec.ID()); i >= 0 {
		m.entities[i] = rec
	} else {
		m.entities = append(m.entities, rec)
	}
	m.mu.Unlock()

	m.notifier.Notify(ctx, fmt.Sprintf("Saved %s", displayName(rec)), notify.LevelSuccess)
	return nil
}

// Delete removes the entity with id after the backend confirms the delete.
// conf must come from [Confirm] with the same id.
func (m *Manager) Delete(ctx context.Context, id string, conf Confirmation) error {
	if conf.id == "" || conf.id != id {
		return fmt.Errorf("%w: %q", ErrNotConfirmed, id)
	}
	scope, gen, err := m.active()
	if err != nil {
		return err
	}
	rec, err := m.Get(id)
	if err != nil {
		return err
	}

	if err := m.store.DeleteEntity(ctx, scope, id); err != nil {
		if m.isCurrent(gen) {
			m.notifier.Notify(ctx, fmt.Sprintf("Could not delete %s: %v", displayName(rec), err), notify.LevelError)
		}
		m.log.Warn("failed to delete entity", "scope", scope, "id", id, "err", err)
		return fmt.Errorf("collection: delete %s: %w", id, err)
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		return ErrStale
	}
	if i := m.index(id); i >= 0 {
		m.entities = slices.Delete(m.entities, i, i+1)
	}
	m.mu.Unlock()

	m.notifier.Notify(ctx, fmt.Sprintf("Deleted %s", displayName(rec)), notify.LevelInfo)
	return nil
}

// Close drops the list and invalidates every call still in flight.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.closed = true
	m.scope = ""
	m.entities = []record.Record{}
}

func (m *Manager) active() (string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.scope == "" {
		return "", 0, ErrNoScope
	}
	return m.scope, m.gen, nil
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && !m.closed
}

func (m *Manager) lookup(id string) (record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		return m.entities[i], true
	}
	return nil, false
}

// index must be called with m.mu held.
func (m *Manager) index(id string) int {
	return slices.IndexFunc(m.entities, func(r record.Record) bool { return r.ID() == id })
}

func cloneAll(recs []record.Record) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Clone())
	}
	return out
}

func displayName(rec record.Record) string {
	if n := strings.TrimSpace(rec.Name()); n != "" {
		return fmt.Sprintf("%q", n)
	}
	return rec.ID()
}

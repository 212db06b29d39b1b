package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/npcforge/internal/collection"
	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/validate"
	"github.com/MrWong99/npcforge/internal/wizard"
)

var (
	// ErrSessionActive is returned when a wizard session is started while
	// another one is still open.
	ErrSessionActive = errors.New("app: an edit session is already active")

	// ErrNoSession is returned when no wizard session is open.
	ErrNoSession = errors.New("app: no active edit session")
)

// SessionInfo holds metadata about the open edit session.
type SessionInfo struct {
	// Scope is the scope the draft will be saved into.
	Scope string

	// EntityID is the id of the draft.
	EntityID string

	// EditingExisting is true when the draft is a copy of a stored entity.
	EditingExisting bool

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// Editor pairs one scope's entity list with the single wizard session that
// edits it. Only one session can be open at a time, and switching scopes
// discards it. All exported methods are safe for concurrent use.
type Editor struct {
	mu           sync.Mutex
	active       bool
	info         SessionInfo
	defaultScope string

	entities *collection.Manager
	wizard   *wizard.Controller
	now      func() time.Time
}

// EditorConfig holds all dependencies for an [Editor].
type EditorConfig struct {
	Store     npcstore.Store
	Factory   *factory.Factory
	Validator *validate.Validator
	Notifier  notify.Notifier
	Metrics   *observe.Metrics

	// DefaultScope is opened by [Editor.OpenScope] when called with "".
	DefaultScope string
}

// NewEditor creates an Editor with no scope loaded.
func NewEditor(cfg EditorConfig) *Editor {
	n := cfg.Notifier
	if n == nil {
		n = notify.Discard
	}
	entities := collection.New(cfg.Store, cfg.Factory,
		collection.WithNotifier(n),
		collection.WithLogger(slog.Default().With("component", "collection")),
	)
	wopts := []wizard.Option{wizard.WithNotifier(n)}
	if cfg.Metrics != nil {
		wopts = append(wopts, wizard.WithMetrics(cfg.Metrics))
	}
	return &Editor{
		defaultScope: cfg.DefaultScope,
		entities:     entities,
		wizard:       wizard.New(cfg.Factory, cfg.Validator, entities, wopts...),
		now:          time.Now,
	}
}

// Entities returns the scope's entity list.
func (e *Editor) Entities() *collection.Manager { return e.entities }

// Wizard returns the session controller. Field edits and step moves go
// through it directly; starting, saving and cancelling go through the Editor
// so the session bookkeeping stays consistent.
func (e *Editor) Wizard() *wizard.Controller { return e.wizard }

// DefaultScope returns the scope opened when none is given.
func (e *Editor) DefaultScope() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultScope
}

// SetDefaultScope replaces the default scope. The loaded scope is unchanged.
func (e *Editor) SetDefaultScope(scope string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultScope = scope
}

// OpenScope loads scope, or the default scope when scope is blank. An open
// session is discarded when the scope changes.
func (e *Editor) OpenScope(ctx context.Context, scope string) ([]record.Record, error) {
	e.mu.Lock()
	if strings.TrimSpace(scope) == "" {
		scope = e.defaultScope
	}
	if e.active && e.info.Scope != scope {
		slog.Info("edit session discarded by scope switch", "entity_id", e.info.EntityID, "from", e.info.Scope, "to", scope)
		e.wizard.Cancel(ctx)
		e.clear()
	}
	e.mu.Unlock()

	return e.entities.LoadForScope(ctx, scope)
}

// StartNew opens a session for a new entity at the variant step.
func (e *Editor) StartNew(ctx context.Context) (wizard.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	scope, err := e.startable()
	if err != nil {
		return wizard.Session{}, err
	}
	s := e.wizard.Begin(ctx)
	e.open(scope, s)
	return s, nil
}

// StartEdit opens a session editing a copy of the entity with id.
func (e *Editor) StartEdit(ctx context.Context, id string) (wizard.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	scope, err := e.startable()
	if err != nil {
		return wizard.Session{}, err
	}
	rec, err := e.entities.EditExisting(id)
	if err != nil {
		return wizard.Session{}, err
	}
	s, err := e.wizard.BeginEdit(ctx, rec)
	if err != nil {
		return wizard.Session{}, err
	}
	e.open(scope, s)
	return s, nil
}

// Save saves the session draft into the loaded scope and closes the session.
// The session stays open when saving fails.
func (e *Editor) Save(ctx context.Context) (validate.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return validate.Result{}, ErrNoSession
	}
	res, err := e.wizard.Save(ctx)
	if err != nil {
		return res, err
	}
	slog.Info("edit session saved", "scope", e.info.Scope, "entity_id", e.info.EntityID,
		"duration", e.now().Sub(e.info.StartedAt))
	e.clear()
	return res, nil
}

// Cancel discards the open session. It is a no-op without one.
func (e *Editor) Cancel(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	e.wizard.Cancel(ctx)
	slog.Info("edit session cancelled", "scope", e.info.Scope, "entity_id", e.info.EntityID)
	e.clear()
}

// IsActive reports whether a session is open.
func (e *Editor) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Info returns metadata about the open session, or the zero value.
func (e *Editor) Info() SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// Close discards the session and any in-flight entity loads.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		e.wizard.Cancel(context.Background())
		e.clear()
	}
	e.entities.Close()
}

// startable returns the loaded scope when a new session may start.
// Callers hold mu.
func (e *Editor) startable() (string, error) {
	if e.active {
		return "", fmt.Errorf("%w (entity %s)", ErrSessionActive, e.info.EntityID)
	}
	scope := e.entities.Scope()
	if scope == "" {
		return "", collection.ErrNoScope
	}
	return scope, nil
}

func (e *Editor) open(scope string, s wizard.Session) {
	e.active = true
	e.info = SessionInfo{
		Scope:           scope,
		EntityID:        s.Draft.ID(),
		EditingExisting: s.EditingExisting,
		StartedAt:       e.now().UTC(),
	}
	slog.Info("edit session started", "scope", scope, "entity_id", e.info.EntityID, "editing", s.EditingExisting)
}

func (e *Editor) clear() {
	e.active = false
	e.info = SessionInfo{}
}

// Package app wires the npcforge subsystems into a running editor service.
//
// The App struct owns the full lifecycle: New builds the catalog, opens the
// configured store behind a circuit breaker and preloads the default scope,
// Apply takes hot-reloaded settings, and Shutdown tears everything down in
// order.
//
// For testing, inject a store or notifier via functional options
// (WithStore, WithNotifier). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/npcforge/internal/collection"
	"github.com/MrWong99/npcforge/internal/config"
	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/health"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
)

// noticeLimit caps the notices kept for [App.Notices].
const noticeLimit = 100

// App owns all subsystem lifetimes of the editor service.
type App struct {
	cfg *config.Config

	registry  *schema.Registry
	factory   *factory.Factory
	validator *validate.Validator
	notifier  notify.Notifier
	notices   *notify.Recorder
	metrics   *observe.Metrics

	// primary is the raw backend; store guards it.
	primary npcstore.Store
	store   *npcstore.Guarded
	editor  *Editor

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a backend instead of opening the configured one. It is
// still wrapped in the circuit breaker.
func WithStore(s npcstore.Store) Option {
	return func(a *App) { a.primary = s }
}

// WithNotifier injects the notification collaborator. Default: a
// [notify.Log] on the default logger. Notifications are also kept for
// [App.Notices] either way.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithMetrics injects the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRegistry replaces the built-in variant catalog.
func WithRegistry(r *schema.Registry) Option {
	return func(a *App) { a.registry = r }
}

// New creates an App by wiring all subsystems together. It opens the store,
// checks that it is reachable and loads the default scope, if one is
// configured, before returning.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = schema.Builtin()
	}
	if a.notifier == nil {
		a.notifier = notify.NewLog(slog.Default().With("component", "notify"))
	}
	a.notices = &notify.Recorder{Limit: noticeLimit}
	a.notifier = notify.Tee(a.notifier, a.notices)
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.factory = factory.New(a.registry)
	a.validator = validate.New(a.registry)

	if err := a.initStore(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.editor = NewEditor(EditorConfig{
		Store:        a.store,
		Factory:      a.factory,
		Validator:    a.validator,
		Notifier:     a.notifier,
		Metrics:      a.metrics,
		DefaultScope: cfg.Editor.DefaultScope,
	})

	if err := a.preload(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: preload: %w", err)
	}
	return a, nil
}

// initStore opens the configured backend unless one was injected and wraps
// it in the guarded decorator.
func (a *App) initStore(ctx context.Context) error {
	name := string(a.cfg.Store.Backend)
	if a.primary == nil {
		s, closers, err := openBackend(ctx, a.cfg.Store)
		if err != nil {
			return err
		}
		a.primary = s
		a.closers = append(a.closers, closers...)
	} else {
		name = "injected"
	}
	g, err := guard(name, a.primary, a.cfg, a.metrics)
	if err != nil {
		return err
	}
	a.store = g
	slog.Info("store ready", "backend", name)
	return nil
}

// preload pings the store and loads the default scope concurrently. A scope
// that fails to load is reported but does not fail startup; an unreachable
// store does.
func (a *App) preload(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.store.Ping(gctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
		return nil
	})
	if scope := a.editor.DefaultScope(); scope != "" {
		g.Go(func() error {
			recs, err := a.editor.OpenScope(gctx, scope)
			switch {
			case errors.Is(err, collection.ErrStale):
			case err != nil:
				slog.Warn("default scope not loaded", "scope", scope, "err", err)
			default:
				slog.Info("default scope loaded", "scope", scope, "entities", len(recs))
			}
			return nil
		})
	}
	return g.Wait()
}

// Config returns the config the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the variant catalog.
func (a *App) Registry() *schema.Registry { return a.registry }

// Factory returns the entity factory.
func (a *App) Factory() *factory.Factory { return a.factory }

// Validator returns the shared validator.
func (a *App) Validator() *validate.Validator { return a.validator }

// Store returns the guarded store.
func (a *App) Store() *npcstore.Guarded { return a.store }

// Editor returns the editor facade.
func (a *App) Editor() *Editor { return a.editor }

// Notices returns the most recent user notifications not yet drained.
func (a *App) Notices() *notify.Recorder { return a.notices }

// Metrics returns the metrics sink.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Checkers returns the readiness checks for the App's dependencies.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{health.PingChecker("store", a.store)}
}

// Apply takes the parts of a reloaded config that can change at runtime.
// Changes that need a restart are logged and otherwise ignored.
func (a *App) Apply(next *config.Config, diff config.ConfigDiff) {
	if diff.ResilienceChanged {
		a.store.Tune(breakerConfig(next.Resilience))
		slog.Info("store breaker retuned",
			"max_failures", next.Resilience.MaxFailures,
			"reset_timeout", next.Resilience.ResetTimeout,
		)
	}
	if diff.DefaultScopeChanged {
		a.editor.SetDefaultScope(next.Editor.DefaultScope)
		slog.Info("default scope changed", "scope", next.Editor.DefaultScope)
	}
	if diff.RequiresRestart() {
		slog.Warn("config change requires restart",
			"store_changed", diff.StoreChanged,
			"listen_addr_changed", diff.ListenAddrChanged,
		)
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.editor.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// runClosers releases whatever New opened before failing.
func (a *App) runClosers() {
	for i, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}

package npcstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/resilience"
)

// Compile-time interface checks.
var (
	_ Store  = (*Guarded)(nil)
	_ Pinger = (*Guarded)(nil)
)

// GuardedOption configures a [Guarded] store.
type GuardedOption func(*guardedOptions)

type guardedOptions struct {
	breaker   resilience.CircuitBreakerConfig
	metrics   *observe.Metrics
	fallbacks []namedStore
	log       *slog.Logger
}

type namedStore struct {
	name  string
	store Store
}

// WithBreaker sets the circuit breaker tuning. The breaker name is always the
// backend name.
func WithBreaker(cfg resilience.CircuitBreakerConfig) GuardedOption {
	return func(o *guardedOptions) { o.breaker = cfg }
}

// WithGuardMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithGuardMetrics(m *observe.Metrics) GuardedOption {
	return func(o *guardedOptions) { o.metrics = m }
}

// WithReadFallback adds a store consulted for ListEntities while the primary
// is failing. Fallbacks are never written to.
func WithReadFallback(name string, s Store) GuardedOption {
	return func(o *guardedOptions) { o.fallbacks = append(o.fallbacks, namedStore{name, s}) }
}

// WithGuardLogger sets the logger for breaker transitions.
func WithGuardLogger(l *slog.Logger) GuardedOption {
	return func(o *guardedOptions) { o.log = l }
}

// Guarded decorates a [Store] with a circuit breaker, a span per call and
// store metrics. Only [ErrPersistence] failures count against the breaker.
// While the breaker is open, calls fail fast with an error wrapping both
// [ErrPersistence] and [resilience.ErrCircuitOpen].
type Guarded struct {
	name    string
	primary Store
	breaker *resilience.CircuitBreaker
	reads   *resilience.FallbackGroup[Store]
	metrics *observe.Metrics
}

// NewGuarded wraps primary. name labels spans, metrics and the breaker.
func NewGuarded(name string, primary Store, opts ...GuardedOption) *Guarded {
	o := guardedOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	cbCfg := o.breaker
	cbCfg.Name = name
	cbCfg.Logger = o.log
	cbCfg.IsFailure = isBackendFailure

	breaker := resilience.NewCircuitBreaker(cbCfg)
	reads := resilience.NewFallbackGroup(primary, breaker, resilience.FallbackConfig{CircuitBreaker: cbCfg})
	for _, fb := range o.fallbacks {
		reads.AddFallback(fb.name, fb.store)
	}
	return &Guarded{
		name:    name,
		primary: primary,
		breaker: breaker,
		reads:   reads,
		metrics: o.metrics,
	}
}

// isBackendFailure reports whether err says something about the backend's
// health.
func isBackendFailure(err error) bool {
	return resilience.DefaultIsFailure(err) && errors.Is(err, ErrPersistence)
}

// Name returns the backend name.
func (g *Guarded) Name() string { return g.name }

// BreakerState reports the primary breaker state.
func (g *Guarded) BreakerState() resilience.State { return g.breaker.State() }

// Tune applies new breaker thresholds to the primary breaker.
func (g *Guarded) Tune(cfg resilience.CircuitBreakerConfig) { g.breaker.Tune(cfg) }

// Unwrap returns the primary store.
func (g *Guarded) Unwrap() Store { return g.primary }

// ListEntities implements [Store.ListEntities]. When read fallbacks are
// configured and the primary is unavailable, the first healthy fallback
// serves the list.
func (g *Guarded) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	var out []record.Record
	err := g.do(ctx, "list", scope, func(ctx context.Context) error {
		recs, from, err := resilience.ExecuteWithResult(ctx, g.reads,
			func(ctx context.Context, s Store) ([]record.Record, error) {
				return s.ListEntities(ctx, scope)
			})
		if err != nil {
			return err
		}
		if from != g.name {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("npcstore.served_by", from))
		}
		out = recs
		return nil
	})
	return out, err
}

// SaveEntity implements [Store.SaveEntity].
func (g *Guarded) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	return g.do(ctx, "save", scope, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			return g.primary.SaveEntity(ctx, scope, rec)
		})
	})
}

// DeleteEntity implements [Store.DeleteEntity].
func (g *Guarded) DeleteEntity(ctx context.Context, scope, id string) error {
	return g.do(ctx, "delete", scope, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			return g.primary.DeleteEntity(ctx, scope, id)
		})
	})
}

// Ping forwards to the primary when it implements [Pinger]. It bypasses the
// breaker so readiness reflects the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	p, ok := g.primary.(Pinger)
	if !ok {
		return nil
	}
	return g.do(ctx, "ping", "", p.Ping)
}

func (g *Guarded) do(ctx context.Context, op, scope string, fn func(context.Context) error) (err error) {
	ctx, span := observe.StartSpan(ctx, "npcstore."+op,
		trace.WithAttributes(
			attribute.String("npcstore.backend", g.name),
			attribute.String("npcstore.scope", scope),
		),
	)
	start := time.Now()
	defer func() {
		g.metrics.RecordStoreOp(ctx, g.name, op, time.Since(start), err)
		observe.EndSpan(span, err)
	}()

	err = fn(ctx)
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrAllFailed) {
		if !errors.Is(err, ErrPersistence) {
			err = persistErr(op+" "+scope, err)
		}
	}
	return err
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/npcforge/internal/config"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/resilience"
)

// mirrorName labels the read-only mirror in spans and metrics.
const mirrorName = "mirror"

// openBackend constructs the primary store selected by cfg. The returned
// closers release the backend and run in order during shutdown.
func openBackend(ctx context.Context, cfg config.StoreConfig) (npcstore.Store, []func() error, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return npcstore.NewMemStore(), nil, nil
	case config.StoreFile:
		s, err := npcstore.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.StoreSQLite:
		s, err := npcstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, []func() error{s.Close}, nil
	case config.StorePostgres:
		s, closeFn, err := npcstore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, []func() error{func() error { closeFn(); return nil }}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// breakerConfig converts the resilience section into breaker tuning.
func breakerConfig(rc config.ResilienceConfig) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		MaxFailures:  rc.MaxFailures,
		ResetTimeout: rc.ResetTimeout,
		HalfOpenMax:  rc.HalfOpenMax,
	}
}

// guard wraps primary in a circuit breaker with store metrics. When
// cfg.Store.MirrorDir is set, a file store there serves reads while the
// primary is unavailable.
func guard(name string, primary npcstore.Store, cfg *config.Config, m *observe.Metrics) (*npcstore.Guarded, error) {
	opts := []npcstore.GuardedOption{
		npcstore.WithBreaker(breakerConfig(cfg.Resilience)),
		npcstore.WithGuardMetrics(m),
		npcstore.WithGuardLogger(slog.Default().With("component", "npcstore")),
	}
	if cfg.Store.MirrorDir != "" {
		mirror, err := npcstore.NewFileStore(cfg.Store.MirrorDir)
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		opts = append(opts, npcstore.WithReadFallback(mirrorName, mirror))
		slog.Info("store mirror enabled", "dir", cfg.Store.MirrorDir)
	}
	return npcstore.NewGuarded(name, primary, opts...), nil
}

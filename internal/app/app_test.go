package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/npcforge/internal/app"
	"github.com/MrWong99/npcforge/internal/config"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/resilience"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(testMetrics(t)), app.WithNotifier(notify.Discard)}, opts...)
	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

// downStore is reachable for nothing.
type downStore struct {
	*npcstore.MemStore
}

func (downStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestNew_Backends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		configure func(c *config.Config, dir string)
	}{
		{"memory", func(*config.Config, string) {}},
		{"file", func(c *config.Config, dir string) {
			c.Store.Backend = config.StoreFile
			c.Store.Dir = filepath.Join(dir, "zones")
		}},
		{"sqlite", func(c *config.Config, dir string) {
			c.Store.Backend = config.StoreSQLite
			c.Store.SQLitePath = filepath.Join(dir, "npcforge.db")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := config.Default()
			tt.configure(cfg, t.TempDir())

			a := newApp(t, cfg)
			if got := a.Store().Name(); got != tt.name {
				t.Errorf("store name = %q, want %q", got, tt.name)
			}
			rec := record.Record{"id": "npc_1", "name": "Joy", "type": "healer"}
			if err := a.Store().SaveEntity(ctx, "pallet_town", rec); err != nil {
				t.Fatalf("SaveEntity: %v", err)
			}
			recs, err := a.Store().ListEntities(ctx, "pallet_town")
			if err != nil || len(recs) != 1 {
				t.Fatalf("ListEntities = %v, %v", recs, err)
			}
			for _, c := range a.Checkers() {
				if err := c.Check(ctx); err != nil {
					t.Errorf("checker %s: %v", c.Name, err)
				}
			}
		})
	}
}

func TestNew_PreloadsDefaultScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := npcstore.NewMemStore()
	if err := mem.SaveEntity(ctx, "pallet_town", record.Record{"id": "npc_oak", "name": "Oak", "type": "researcher"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Editor.DefaultScope = "pallet_town"

	a := newApp(t, cfg, app.WithStore(mem))
	if a.Store().Name() != "injected" {
		t.Errorf("store name = %q, want injected", a.Store().Name())
	}
	if got := a.Editor().Entities().Scope(); got != "pallet_town" {
		t.Errorf("scope = %q, want pallet_town", got)
	}
	if got := a.Editor().Entities().Entities(); len(got) != 1 || got[0].ID() != "npc_oak" {
		t.Errorf("entities = %v", got)
	}
}

func TestNew_UnreachableStore(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), config.Default(),
		app.WithMetrics(testMetrics(t)),
		app.WithStore(downStore{npcstore.NewMemStore()}),
	)
	if err == nil || !strings.Contains(err.Error(), "app: preload: ping store") {
		t.Fatalf("err = %v, want preload ping error", err)
	}
}

func TestNew_BadFileDir(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Backend = config.StoreFile
	cfg.Store.Dir = ""
	_, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if err == nil || !strings.Contains(err.Error(), "app: init store") {
		t.Fatalf("err = %v, want init store error", err)
	}
}

func TestNew_MirrorServesReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mirrorDir := t.TempDir()
	mirror, err := npcstore.NewFileStore(mirrorDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := mirror.SaveEntity(ctx, "pallet_town", record.Record{"id": "npc_m", "name": "Mirror", "type": "dialogue"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Store.MirrorDir = mirrorDir
	cfg.Resilience.MaxFailures = 1
	primary := &failingLists{MemStore: npcstore.NewMemStore()}
	a := newApp(t, cfg, app.WithStore(primary))

	recs, err := a.Store().ListEntities(ctx, "pallet_town")
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(recs) != 1 || recs[0].ID() != "npc_m" {
		t.Errorf("recs = %v, want the mirror's entity", recs)
	}
}

// failingLists fails every list with a persistence error.
type failingLists struct {
	*npcstore.MemStore
}

func (f *failingLists) ListEntities(context.Context, string) ([]record.Record, error) {
	return nil, errors.Join(npcstore.ErrPersistence, errors.New("disk gone"))
}

func TestApp_Apply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &failingLists{MemStore: npcstore.NewMemStore()}
	cfg := config.Default()
	a := newApp(t, cfg, app.WithStore(primary))

	next := config.Default()
	next.Resilience.MaxFailures = 1
	next.Resilience.ResetTimeout = time.Hour
	next.Editor.DefaultScope = "cerulean"
	a.Apply(next, config.Diff(cfg, next))

	if got := a.Editor().DefaultScope(); got != "cerulean" {
		t.Errorf("default scope = %q, want cerulean", got)
	}
	_, _ = a.Store().ListEntities(ctx, "cerulean")
	if st := a.Store().BreakerState(); st != resilience.StateOpen {
		t.Errorf("breaker state after one failure = %v, want open with retuned threshold", st)
	}
}

func TestApp_Notices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rec := &notify.Recorder{}
	a, err := app.New(ctx, config.Default(), app.WithMetrics(testMetrics(t)), app.WithNotifier(rec),
		app.WithStore(&failingLists{MemStore: npcstore.NewMemStore()}))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(ctx)

	if _, err := a.Editor().OpenScope(ctx, "pallet_town"); err == nil {
		t.Fatal("OpenScope succeeded against a failing store")
	}
	if len(rec.All()) != 1 {
		t.Errorf("injected notifier got %d notices, want 1", len(rec.All()))
	}
	notices := a.Notices().Drain()
	if len(notices) != 1 || notices[0].Level != notify.LevelError {
		t.Errorf("Notices() = %+v, want one error", notices)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Backend = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "npcforge.db")
	a, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	// Second call is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if err := a.Store().Ping(context.Background()); err == nil {
		t.Error("Ping succeeded on a closed database")
	}
}

func TestApp_ShutdownDeadline(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Backend = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "npcforge.db")
	a, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

package npcstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/resilience"
)

// flakyStore fails every call with a persistence error while down is set.
type flakyStore struct {
	*MemStore
	down  atomic.Bool
	calls atomic.Int32
}

func newFlakyStore() *flakyStore { return &flakyStore{MemStore: NewMemStore()} }

func (f *flakyStore) fail(op string) error {
	f.calls.Add(1)
	if f.down.Load() {
		return persistErr(op, errors.New("backend down"))
	}
	return nil
}

func (f *flakyStore) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	return f.MemStore.ListEntities(ctx, scope)
}

func (f *flakyStore) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	if err := f.fail("save"); err != nil {
		return err
	}
	return f.MemStore.SaveEntity(ctx, scope, rec)
}

func (f *flakyStore) DeleteEntity(ctx context.Context, scope, id string) error {
	if err := f.fail("delete"); err != nil {
		return err
	}
	return f.MemStore.DeleteEntity(ctx, scope, id)
}

func newTestGuarded(t *testing.T, primary Store, opts ...GuardedOption) (*Guarded, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	opts = append([]GuardedOption{
		WithGuardMetrics(m),
		WithBreaker(resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}),
	}, opts...)
	return NewGuarded("primary", primary, opts...), reader
}

func TestGuarded_Contract(t *testing.T) {
	t.Parallel()
	runStoreContract(t, func(t *testing.T) Store {
		g, _ := newTestGuarded(t, NewMemStore())
		return g
	})
}

func TestGuarded_OpensOnPersistenceFailures(t *testing.T) {
	t.Parallel()

	primary := newFlakyStore()
	g, _ := newTestGuarded(t, primary)
	ctx := context.Background()

	primary.down.Store(true)
	for range 2 {
		if err := g.SaveEntity(ctx, "z", entity("a", "dialogue", "A")); !errors.Is(err, ErrPersistence) {
			t.Fatalf("err = %v, want ErrPersistence", err)
		}
	}
	if g.BreakerState() != resilience.StateOpen {
		t.Fatalf("breaker = %v, want open", g.BreakerState())
	}

	before := primary.calls.Load()
	err := g.SaveEntity(ctx, "z", entity("a", "dialogue", "A"))
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrPersistence wrapping ErrCircuitOpen", err)
	}
	if primary.calls.Load() != before {
		t.Error("open breaker still called the backend")
	}
}

func TestGuarded_CallerErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	g, _ := newTestGuarded(t, NewMemStore())
	for range 5 {
		err := g.SaveEntity(context.Background(), "z", record.Record{"name": "no id"})
		if !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("err = %v, want ErrInvalidRecord", err)
		}
	}
	if g.BreakerState() != resilience.StateClosed {
		t.Fatalf("breaker = %v, want closed", g.BreakerState())
	}
}

func TestGuarded_ReadFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newFlakyStore()
	mirror := NewMemStore()
	if err := mirror.SaveEntity(ctx, "z", entity("mirrored", "dialogue", "M")); err != nil {
		t.Fatal(err)
	}
	g, _ := newTestGuarded(t, primary, WithReadFallback("mirror", mirror))

	primary.down.Store(true)
	got, err := g.ListEntities(ctx, "z")
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "mirrored" {
		t.Errorf("got %v, want mirrored entity", ids(got))
	}

	// Writes never fail over.
	if err := g.SaveEntity(ctx, "z", entity("a", "dialogue", "A")); !errors.Is(err, ErrPersistence) {
		t.Fatalf("SaveEntity err = %v, want ErrPersistence", err)
	}
	mirrored, err := mirror.ListEntities(ctx, "z")
	if err != nil {
		t.Fatal(err)
	}
	if len(mirrored) != 1 {
		t.Errorf("mirror was written to: %v", ids(mirrored))
	}
}

func TestGuarded_RecordsMetrics(t *testing.T) {
	t.Parallel()

	g, reader := newTestGuarded(t, NewMemStore())
	ctx := context.Background()
	_ = g.SaveEntity(ctx, "z", entity("a", "dialogue", "A"))
	_, _ = g.ListEntities(ctx, "z")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "npcforge.store.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, _ := dp.Attributes.Value("backend"); v.AsString() != "primary" {
					t.Errorf("backend attribute = %q", v.AsString())
				}
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("store operations = %d, want 2", total)
	}
}

func TestGuarded_Ping(t *testing.T) {
	t.Parallel()

	g, _ := newTestGuarded(t, NewMemStore())
	if err := g.Ping(context.Background()); err != nil {
		t.Errorf("Ping on non-pinger: %v", err)
	}
	if g.Unwrap() == nil || g.Name() != "primary" {
		t.Error("accessors not wired")
	}

	f, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g, _ = newTestGuarded(t, f)
	if err := g.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

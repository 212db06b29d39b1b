package app

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/npcforge/internal/collection"
	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/form"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
	"github.com/MrWong99/npcforge/internal/wizard"
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

func seedStore(t *testing.T, scope string, recs ...record.Record) *npcstore.MemStore {
	t.Helper()
	s := npcstore.NewMemStore()
	for _, r := range recs {
		if err := s.SaveEntity(context.Background(), scope, r); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func newTestEditor(t *testing.T, s npcstore.Store) (*Editor, *notify.Recorder) {
	t.Helper()
	reg := schema.Builtin()
	rec := &notify.Recorder{}
	e := NewEditor(EditorConfig{
		Store:        s,
		Factory:      factory.New(reg),
		Validator:    validate.New(reg),
		Notifier:     rec,
		Metrics:      testMetrics(t),
		DefaultScope: "pallet_town",
	})
	t.Cleanup(e.Close)
	return e, rec
}

func oldMan() record.Record {
	return record.Record{
		"id":          "npc_old_man",
		"name":        "Old Man",
		"type":        "dialogue",
		"sprite":      "old_man.png",
		"direction":   "down",
		"position":    map[string]any{"x": 64.0, "y": 96.0},
		"dialogueIds": []any{"intro"},
	}
}

func TestEditor_OpenScopeUsesDefault(t *testing.T) {
	t.Parallel()

	e, _ := newTestEditor(t, seedStore(t, "pallet_town", oldMan()))
	recs, err := e.OpenScope(context.Background(), "")
	if err != nil {
		t.Fatalf("OpenScope: %v", err)
	}
	if len(recs) != 1 || recs[0].ID() != "npc_old_man" {
		t.Errorf("entities = %v", recs)
	}
	if got := e.Entities().Scope(); got != "pallet_town" {
		t.Errorf("scope = %q, want pallet_town", got)
	}

	e.SetDefaultScope("")
	if _, err := e.OpenScope(context.Background(), " "); !errors.Is(err, npcstore.ErrInvalidRecord) {
		t.Errorf("blank scope without default: err = %v, want ErrInvalidRecord", err)
	}
}

func TestEditor_StartNeedsScope(t *testing.T) {
	t.Parallel()

	e, _ := newTestEditor(t, npcstore.NewMemStore())
	if _, err := e.StartNew(context.Background()); !errors.Is(err, collection.ErrNoScope) {
		t.Errorf("StartNew err = %v, want ErrNoScope", err)
	}
	if e.IsActive() {
		t.Error("session active after failed start")
	}
}

func TestEditor_SingleSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEditor(t, npcstore.NewMemStore())
	if _, err := e.OpenScope(ctx, "pallet_town"); err != nil {
		t.Fatal(err)
	}
	s, err := e.StartNew(ctx)
	if err != nil {
		t.Fatalf("StartNew: %v", err)
	}
	if s.Step != wizard.StepVariantSelect {
		t.Errorf("step = %v, want variant", s.Step)
	}

	if _, err := e.StartNew(ctx); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second StartNew err = %v, want ErrSessionActive", err)
	}
	info := e.Info()
	if info.Scope != "pallet_town" || info.EntityID != s.Draft.ID() || info.StartedAt.IsZero() {
		t.Errorf("Info() = %+v", info)
	}

	e.Cancel(ctx)
	if e.IsActive() {
		t.Error("session still active after Cancel")
	}
	if (e.Info() != SessionInfo{}) {
		t.Errorf("Info() after cancel = %+v, want zero", e.Info())
	}
	if _, err := e.StartNew(ctx); err != nil {
		t.Errorf("StartNew after cancel: %v", err)
	}
}

func TestEditor_CreateAndSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := npcstore.NewMemStore()
	e, rec := newTestEditor(t, store)
	if _, err := e.OpenScope(ctx, "pallet_town"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StartNew(ctx); err != nil {
		t.Fatal(err)
	}
	w := e.Wizard()
	if _, err := w.SelectVariant(schema.Dialogue); err != nil {
		t.Fatal(err)
	}
	for _, cmd := range []form.EditCommand{
		{Path: "name", Input: "Nurse"},
		{Path: "sprite", Input: "nurse.png"},
		{Path: "dialogueIds", Input: "welcome"},
	} {
		if _, err := w.Apply(cmd); err != nil {
			t.Fatalf("Apply(%+v): %v", cmd, err)
		}
	}
	if _, err := w.GoToStep(ctx, wizard.StepPreview); err != nil {
		t.Fatal(err)
	}

	res, err := e.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v (%+v)", err, res.Errors)
	}
	if e.IsActive() {
		t.Error("session still active after save")
	}

	stored, err := store.ListEntities(ctx, "pallet_town")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Name() != "Nurse" {
		t.Fatalf("stored = %v", stored)
	}
	if got := e.Entities().Entities(); len(got) != 1 {
		t.Errorf("list = %v, want the saved entity", got)
	}
	if n, ok := rec.Last(); !ok || n.Level != notify.LevelSuccess {
		t.Errorf("last notification = %+v, want success", n)
	}
}

func TestEditor_SaveWithoutSession(t *testing.T) {
	t.Parallel()

	e, _ := newTestEditor(t, npcstore.NewMemStore())
	if _, err := e.Save(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestEditor_StartEdit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEditor(t, seedStore(t, "pallet_town", oldMan()))
	if _, err := e.OpenScope(ctx, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := e.StartEdit(ctx, "npc_missing"); !errors.Is(err, collection.ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
	if e.IsActive() {
		t.Fatal("failed StartEdit left a session open")
	}

	s, err := e.StartEdit(ctx, "npc_old_man")
	if err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if !s.EditingExisting || s.Step != wizard.StepBasicInfo {
		t.Errorf("session = %+v, want editing at basic info", s)
	}
	if !e.Info().EditingExisting {
		t.Error("Info().EditingExisting = false")
	}
}

func TestEditor_ScopeSwitchDiscardsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, _ := newTestEditor(t, npcstore.NewMemStore())
	if _, err := e.OpenScope(ctx, "pallet_town"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StartNew(ctx); err != nil {
		t.Fatal(err)
	}

	// Reloading the same scope keeps the session.
	if _, err := e.OpenScope(ctx, "pallet_town"); err != nil {
		t.Fatal(err)
	}
	if !e.IsActive() {
		t.Fatal("reloading the same scope ended the session")
	}

	if _, err := e.OpenScope(ctx, "viridian_city"); err != nil {
		t.Fatal(err)
	}
	if e.IsActive() {
		t.Error("session survived a scope switch")
	}
	if _, ok := e.Wizard().Session(); ok {
		t.Error("wizard still holds a draft after scope switch")
	}
}

package npcstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data    [][]any
	idx     int
	err     error
	closed  bool
	scanErr error
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *[]byte:
			*d = v.([]byte)
		case *int:
			*d = v.(int)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// pingDB adds a Ping method so the store uses it instead of SELECT 1.
type pingDB struct {
	mockDB
	pingErr error
	pinged  bool
}

func (p *pingDB) Ping(context.Context) error {
	p.pinged = true
	return p.pingErr
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var gotSQL string
		db := &mockDB{
			execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
				gotSQL = sql
				return pgconn.CommandTag{}, nil
			},
		}
		if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS npc_entities") {
			t.Error("Migrate did not execute the expected DDL")
		}
		if !strings.Contains(gotSQL, "PRIMARY KEY (scope, id)") {
			t.Error("DDL is missing the (scope, id) key")
		}
	})

	t.Run("exec error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("connection refused")
			},
		}
		err := NewPostgresStore(db).Migrate(context.Background())
		if err == nil || !strings.Contains(err.Error(), "npcstore: migrate") {
			t.Fatalf("err = %v, want npcstore: migrate error", err)
		}
	})
}

func TestPostgresStore_SaveEntity(t *testing.T) {
	t.Parallel()

	t.Run("upsert arguments", func(t *testing.T) {
		t.Parallel()
		var (
			gotSQL  string
			gotArgs []any
		)
		db := &mockDB{
			execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				gotSQL = sql
				gotArgs = args
				return pgconn.NewCommandTag("INSERT 0 1"), nil
			},
		}
		rec := entity("npc_1", "merchant", "Shopkeeper")
		if err := NewPostgresStore(db).SaveEntity(context.Background(), "town", rec); err != nil {
			t.Fatalf("SaveEntity: %v", err)
		}
		if !strings.Contains(gotSQL, "ON CONFLICT (scope, id) DO UPDATE") {
			t.Errorf("SQL is not an upsert: %s", gotSQL)
		}
		if strings.Contains(gotSQL, "created_at = ") {
			t.Error("upsert must not overwrite created_at")
		}
		if len(gotArgs) != 5 {
			t.Fatalf("len(args) = %d, want 5", len(gotArgs))
		}
		if diff := cmp.Diff([]any{"town", "npc_1", "merchant", "Shopkeeper"}, gotArgs[:4]); diff != "" {
			t.Errorf("args (-want +got):\n%s", diff)
		}
		var stored map[string]any
		if err := json.Unmarshal(gotArgs[4].([]byte), &stored); err != nil {
			t.Fatalf("data is not JSON: %v", err)
		}
		if stored["sprite"] != "npc.png" {
			t.Errorf("stored sprite = %v", stored["sprite"])
		}
	})

	t.Run("backend error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("broken pipe")
			},
		}
		err := NewPostgresStore(db).SaveEntity(context.Background(), "town", entity("a", "dialogue", "A"))
		if !errors.Is(err, ErrPersistence) {
			t.Fatalf("err = %v, want ErrPersistence", err)
		}
	})

	t.Run("unique violation", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
			},
		}
		err := NewPostgresStore(db).SaveEntity(context.Background(), "town", entity("a", "dialogue", "A"))
		if !errors.Is(err, ErrPersistence) || !strings.Contains(err.Error(), "concurrent insert") {
			t.Fatalf("err = %v, want concurrent insert persistence error", err)
		}
	})

	t.Run("missing id never reaches the database", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				t.Error("Exec should not be called")
				return pgconn.CommandTag{}, nil
			},
		}
		err := NewPostgresStore(db).SaveEntity(context.Background(), "town", entity("", "dialogue", "A"))
		if !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("err = %v, want ErrInvalidRecord", err)
		}
	})
}

func TestPostgresStore_ListEntities(t *testing.T) {
	t.Parallel()

	encode := func(t *testing.T, id string) []byte {
		t.Helper()
		b, err := json.Marshal(entity(id, "dialogue", id))
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	t.Run("decodes rows in order", func(t *testing.T) {
		t.Parallel()
		rows := &mockRows{data: [][]any{{encode(t, "b")}, {encode(t, "a")}}}
		var gotArgs []any
		db := &mockDB{
			queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
				if !strings.Contains(sql, "ORDER BY created_at, id") {
					t.Errorf("missing stable ordering: %s", sql)
				}
				gotArgs = args
				return rows, nil
			},
		}
		got, err := NewPostgresStore(db).ListEntities(context.Background(), "route_1")
		if err != nil {
			t.Fatalf("ListEntities: %v", err)
		}
		if diff := cmp.Diff([]string{"b", "a"}, ids(got)); diff != "" {
			t.Errorf("ids (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]any{"route_1"}, gotArgs); diff != "" {
			t.Errorf("args (-want +got):\n%s", diff)
		}
		if !rows.closed {
			t.Error("rows were not closed")
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		got, err := NewPostgresStore(&mockDB{}).ListEntities(context.Background(), "x")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got %#v, want empty non-nil", got)
		}
	})

	tests := []struct {
		name string
		db   *mockDB
	}{
		{
			name: "query error",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return nil, errors.New("timeout")
			}},
		},
		{
			name: "scan error",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{data: [][]any{{[]byte("{}")}}, scanErr: errors.New("bad column")}, nil
			}},
		},
		{
			name: "rows error",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{err: errors.New("network reset")}, nil
			}},
		},
		{
			name: "corrupt document",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{data: [][]any{{[]byte("{not json")}}}, nil
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPostgresStore(tt.db).ListEntities(context.Background(), "x")
			if !errors.Is(err, ErrPersistence) {
				t.Fatalf("err = %v, want ErrPersistence", err)
			}
		})
	}
}

func TestPostgresStore_DeleteEntity(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &mockDB{
		execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
			gotArgs = args
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	if err := NewPostgresStore(db).DeleteEntity(context.Background(), "town", "gone"); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if diff := cmp.Diff([]any{"town", "gone"}, gotArgs); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	t.Parallel()

	t.Run("uses driver ping", func(t *testing.T) {
		t.Parallel()
		db := &pingDB{}
		if err := NewPostgresStore(db).Ping(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !db.pinged {
			t.Error("driver Ping was not used")
		}
	})

	t.Run("driver ping failure", func(t *testing.T) {
		t.Parallel()
		db := &pingDB{pingErr: errors.New("down")}
		if err := NewPostgresStore(db).Ping(context.Background()); !errors.Is(err, ErrPersistence) {
			t.Fatalf("err = %v, want ErrPersistence", err)
		}
	})

	t.Run("falls back to select", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(dest ...any) error {
					*dest[0].(*int) = 1
					return nil
				}}
			},
		}
		if err := NewPostgresStore(db).Ping(context.Background()); err != nil {
			t.Fatal(err)
		}
	})
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := isDuplicateKeyError(tt.err); got != tt.want {
			t.Errorf("%s: isDuplicateKeyError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

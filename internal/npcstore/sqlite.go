package npcstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/npcforge/internal/record"
)

// Compile-time interface checks.
var (
	_ Store  = (*SQLiteStore)(nil)
	_ Pinger = (*SQLiteStore)(nil)
)

// sqliteSchema creates the entities table. Upserts keep the rowid, so
// ordering by rowid preserves first-save order.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS npc_entities (
    scope      TEXT NOT NULL,
    id         TEXT NOT NULL,
    variant    TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    data       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (scope, id)
);
CREATE INDEX IF NOT EXISTS idx_npc_entities_scope ON npc_entities(scope);
`

// SQLiteStore is a [Store] backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("npcstore: sqlite path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("npcstore: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("npcstore: ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("npcstore: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping implements [Pinger].
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// ListEntities implements [Store.ListEntities].
func (s *SQLiteStore) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM npc_entities WHERE scope = ? ORDER BY rowid`, scope)
	if err != nil {
		return nil, persistErr("list "+scope, err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, persistErr("list scan", err)
		}
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, persistErr("list "+scope, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list "+scope, err)
	}
	return out, nil
}

// SaveEntity implements [Store.SaveEntity].
func (s *SQLiteStore) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	if err := checkRecord(scope, rec); err != nil {
		return err
	}
	data, err := json.Marshal(record.NormalizeRecord(rec))
	if err != nil {
		return fmt.Errorf("npcstore: marshal %s: %w", rec.ID(), err)
	}
	now := time.Now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO npc_entities (scope, id, variant, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, id) DO UPDATE SET
			variant = excluded.variant,
			name = excluded.name,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		scope, rec.ID(), rec.Type(), rec.Name(), string(data), now, now,
	)
	if err != nil {
		return persistErr("save "+rec.ID(), err)
	}
	return nil
}

// DeleteEntity implements [Store.DeleteEntity].
func (s *SQLiteStore) DeleteEntity(ctx context.Context, scope, id string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM npc_entities WHERE scope = ? AND id = ?`, scope, id); err != nil {
		return persistErr("delete "+id, err)
	}
	return nil
}

// decodeRecord unmarshals a stored JSON document into a normalised record.
func decodeRecord(data []byte) (record.Record, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return record.NormalizeRecord(m), nil
}

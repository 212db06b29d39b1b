package npcstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/npcforge/internal/record"
)

// Schema is the SQL DDL for the npc_entities table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS npc_entities (
    scope      TEXT NOT NULL,
    id         TEXT NOT NULL,
    variant    TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    PRIMARY KEY (scope, id)
);
CREATE INDEX IF NOT EXISTS idx_npc_entities_scope_created ON npc_entities(scope, created_at);
CREATE INDEX IF NOT EXISTS idx_npc_entities_variant ON npc_entities(variant);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. The record is
// stored whole in a JSONB column; variant and name are copied into their own
// columns for querying.
type PostgresStore struct {
	db DB
}

// Compile-time interface checks.
var (
	_ Store  = (*PostgresStore)(nil)
	_ Pinger = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling [PostgresStore.Migrate]
// to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, migrates the schema and returns the
// store together with a function that closes the pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("npcstore: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("npcstore: ping postgres: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// Migrate executes the [Schema] DDL against the database, creating the
// npc_entities table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("npcstore: migrate: %w", err)
	}
	return nil
}

// Ping implements [Pinger]. It uses the DB's own Ping when available and a
// trivial query otherwise.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return persistErr("ping", err)
		}
		return nil
	}
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// ListEntities implements [Store.ListEntities].
func (s *PostgresStore) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	const query = `
		SELECT data
		FROM npc_entities
		WHERE scope = $1
		ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, query, scope)
	if err != nil {
		return nil, persistErr("list "+scope, err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistErr("list scan", err)
		}
		rec, err := decodeRecord(data)
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

// SaveEntity implements [Store.SaveEntity]. created_at is only set on insert so
// replacing an entity keeps its place in the list.
func (s *PostgresStore) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	if err := checkRecord(scope, rec); err != nil {
		return err
	}
	data, err := json.Marshal(record.NormalizeRecord(rec))
	if err != nil {
		return fmt.Errorf("npcstore: marshal %s: %w", rec.ID(), err)
	}

	const query = `
		INSERT INTO npc_entities (scope, id, variant, name, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, id) DO UPDATE SET
			variant = EXCLUDED.variant,
			name = EXCLUDED.name,
			data = EXCLUDED.data,
			updated_at = clock_timestamp()`
	if _, err := s.db.Exec(ctx, query, scope, rec.ID(), rec.Type(), rec.Name(), data); err != nil {
		if isDuplicateKeyError(err) {
			return persistErr("save "+rec.ID(), fmt.Errorf("concurrent insert of %q: %w", rec.ID(), err))
		}
		return persistErr("save "+rec.ID(), err)
	}
	return nil
}

// DeleteEntity implements [Store.DeleteEntity].
func (s *PostgresStore) DeleteEntity(ctx context.Context, scope, id string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	const query = `DELETE FROM npc_entities WHERE scope = $1 AND id = $2`
	if _, err := s.db.Exec(ctx, query, scope, id); err != nil {
		return persistErr("delete "+id, err)
	}
	return nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

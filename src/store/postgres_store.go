package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS generation_history (
    id         TEXT PRIMARY KEY,
    tab_id     TEXT NOT NULL,
    kind       TEXT NOT NULL,
    mode       TEXT NOT NULL DEFAULT '',
    prompt     TEXT NOT NULL DEFAULT '',
    parent_id  TEXT NOT NULL DEFAULT '',
    variant    INTEGER NOT NULL DEFAULT 0,
    mime       TEXT NOT NULL DEFAULT '',
    image      BYTEA,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS generation_history_tab_created
    ON generation_history (tab_id, created_at DESC);
`

// PostgresStore persists history in a single Postgres table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed HistoryStore.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	if connStr == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// EnsureSchema creates the history table and index when missing.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, postgresSchema)
	return err
}

func (ps *PostgresStore) Append(ctx context.Context, rec Record) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
        INSERT INTO generation_history (id, tab_id, kind, mode, prompt, parent_id, variant, mime, image, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO NOTHING
        `, rec.ID, rec.TabID, rec.Kind, rec.Mode, rec.Prompt, rec.ParentID, rec.Variant, rec.MIME, rec.Image, rec.CreatedAt.UTC())
	return err
}

func (ps *PostgresStore) List(ctx context.Context, q Query) ([]Record, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
        SELECT id, tab_id, kind, mode, prompt, parent_id, variant, mime, image, created_at
        FROM generation_history
        WHERE ($1 = '' OR tab_id = $1) AND ($2 = '' OR kind = $2)
        ORDER BY created_at DESC
        LIMIT $3
        `, q.TabID, q.Kind, q.limit())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRecord)
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TabID, &rec.Kind, &rec.Mode, &rec.Prompt, &rec.ParentID, &rec.Variant, &rec.MIME, &rec.Image, &rec.CreatedAt)
	return rec, err
}

func (ps *PostgresStore) Close(context.Context) error {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
	return nil
}

var (
	_ HistoryStore      = (*PostgresStore)(nil)
	_ SchemaInitializer = (*PostgresStore)(nil)
)

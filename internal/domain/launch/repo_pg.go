package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is the DDL for the smart_launch_context table. Safe to execute
// repeatedly.
const Migration = `
CREATE TABLE IF NOT EXISTS smart_launch_context (
    token        TEXT PRIMARY KEY,
    context_json JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_smart_launch_context_expires_at
    ON smart_launch_context (expires_at);
`

// pgRow represents a single row returned by QueryRow.
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface required by the PG store. Both
// *pgxpool.Pool (via a thin adapter) and test mocks implement this.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
}

// PGStore is the PostgreSQL-backed launch context store. Contexts live in
// the smart_launch_context table as JSONB with an explicit expires_at column
// that the database uses for filtering.
type PGStore struct {
	db  pgConn
	ttl time.Duration
}

// NewPGStore creates a PG-backed store. Use NewPGStoreFromPool in production;
// pass a mock pgConn in tests.
func NewPGStore(db pgConn, ttl time.Duration) *PGStore {
	return &PGStore{db: db, ttl: ttl}
}

// Save inserts or replaces (upsert) the launch context.
func (s *PGStore) Save(ctx context.Context, token string, lc *LaunchContext) error {
	data, err := json.Marshal(lc)
	if err != nil {
		return fmt.Errorf("marshal launch context: %w", err)
	}

	expiresAt := lc.CreatedAt.Add(s.ttl)

	const query = `INSERT INTO smart_launch_context (token, context_json, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token) DO UPDATE SET context_json = EXCLUDED.context_json,
                                  created_at   = EXCLUDED.created_at,
                                  expires_at   = EXCLUDED.expires_at`

	if err := s.db.Exec(ctx, query, token, data, lc.CreatedAt, expiresAt); err != nil {
		return fmt.Errorf("save launch context: %w", err)
	}
	return nil
}

// Get selects the row only if it has not expired.
func (s *PGStore) Get(ctx context.Context, token string) (*LaunchContext, error) {
	const query = `SELECT context_json FROM smart_launch_context
WHERE token = $1 AND expires_at > now()`

	var data []byte
	if err := s.db.QueryRow(ctx, query, token).Scan(&data); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get launch context: %w", err)
	}

	var lc LaunchContext
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("unmarshal launch context: %w", err)
	}
	return &lc, nil
}

// Consume atomically deletes and returns the row using DELETE ... RETURNING,
// so concurrent authorize requests cannot both resolve the same token.
func (s *PGStore) Consume(ctx context.Context, token string) (*LaunchContext, error) {
	const query = `DELETE FROM smart_launch_context
WHERE token = $1 AND expires_at > now()
RETURNING context_json`

	var data []byte
	if err := s.db.QueryRow(ctx, query, token).Scan(&data); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume launch context: %w", err)
	}

	var lc LaunchContext
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("unmarshal launch context: %w", err)
	}
	return &lc, nil
}

// Cleanup deletes all expired rows from the table.
func (s *PGStore) Cleanup(ctx context.Context) error {
	const query = `DELETE FROM smart_launch_context WHERE expires_at <= now()`
	if err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("cleanup launch contexts: %w", err)
	}
	return nil
}

// isNoRows returns true when the error represents a "no rows" condition.
// It works with both pgx (pgx.ErrNoRows) and the mock used in tests.
func isNoRows(err error) bool {
	if err == pgx.ErrNoRows {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// pgxPoolWrapper adapts *pgxpool.Pool to pgConn. The adapter is necessary
// because pgxpool.Pool.Exec returns (pgconn.CommandTag, error) whereas
// pgConn.Exec returns only error.
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := w.pool.Exec(ctx, sql, args...)
	return err
}

// NewPGStoreFromPool creates a PG-backed store directly from a *pgxpool.Pool.
func NewPGStoreFromPool(pool *pgxpool.Pool, ttl time.Duration) *PGStore {
	return &PGStore{db: &pgxPoolWrapper{pool: pool}, ttl: ttl}
}

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate executes schema DDL statements in order. Each repository package
// exposes its CREATE TABLE IF NOT EXISTS statement; main collects them and
// runs the set at startup and from the migrate subcommand. Statements are
// idempotent,
// so re-running is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool, statements []string) error {
	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}

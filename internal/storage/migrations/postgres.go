package migrations

import (
	"context"
	"fmt"

	"fee-reinvestor/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded PostgreSQL file in name order.
// Files use IF NOT EXISTS and are safe to re-apply.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := pool.Exec(ctx, f.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
	}
	return nil
}

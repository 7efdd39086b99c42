// README: Postgres fixture for store tests. Skips unless PICKUP_TEST_DSN is set.
package testdb

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"pickup/internal/infra"
)

const dsnEnv = "PICKUP_TEST_DSN"

// Open connects to the test database and applies migrations. Tables are not
// truncated because packages run in parallel against the same database; tests
// create rows with fresh IDs and keep their geography apart instead.
// The pool is closed when the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skip(dsnEnv + " not set; skipping DB-backed tests")
	}

	if err := infra.MigrateUp(dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/meetrec/internal/migrations"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/redact"
)

// URLEnv names the variable holding the integration database URL.
const URLEnv = "MEETREC_TEST_DATABASE_URL"

// TestTimeout bounds connection checks and schema setup.
const TestTimeout = 10 * time.Second

// DatabaseURL returns the integration database URL, or "" when unset.
func DatabaseURL() string {
	return os.Getenv(URLEnv)
}

// ShouldSkipDatabaseTest reports whether no integration database is configured.
func ShouldSkipDatabaseTest() bool {
	return DatabaseURL() == ""
}

// Postgres connects to the integration database, applies migrations and
// truncates every table. The test is skipped when no database is configured.
// The connection is closed when the test ends.
func Postgres(t *testing.T) *sql.DB {
	t.Helper()
	url := DatabaseURL()
	if url == "" {
		t.Skipf("%s not set; skipping PostgreSQL integration test", URLEnv)
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "failed to open %s", redact.URL(url))
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "database at %s is not reachable", redact.URL(url))

	m, err := migrations.New(migrations.DriverPostgres, db, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx), "failed to apply migrations")

	_, err = db.ExecContext(ctx, `TRUNCATE tasks, recordings RESTART IDENTITY`)
	require.NoError(t, err, "failed to truncate tables")
	return db
}

// WithTx runs fn inside a transaction that is rolled back afterwards, even
// when fn panics or fails the test.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		// sql.ErrTxDone is expected if fn already ended the transaction.
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

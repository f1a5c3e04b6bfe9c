package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/meetrec/internal/migrations"
	"github.com/phrazzld/meetrec/internal/platform/logger"
)

// newTestDB returns a migrated database file in a temp directory together
// with its path, so tests can open a second handle to the same file.
func newTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meetrec.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.New(migrations.DriverSQLite, db, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))
	return db, path
}

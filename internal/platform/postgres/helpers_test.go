package postgres

import (
	"database/sql"
	"testing"

	"github.com/phrazzld/meetrec/internal/testdb"
)

// newTestDB returns a migrated, empty integration database. The test is
// skipped when no database is configured.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return testdb.Postgres(t)
}

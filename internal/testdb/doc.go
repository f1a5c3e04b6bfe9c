// Package testdb provides database helpers for integration tests.
//
// Tests against PostgreSQL run only when MEETREC_TEST_DATABASE_URL is set;
// otherwise they are skipped. Each call to Postgres applies the embedded
// migrations and empties the tables, and WithTx runs a test body inside a
// transaction that is always rolled back:
//
//	func TestRecordingStore(t *testing.T) {
//	    db := testdb.Postgres(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewPostgresRecordingStore(tx, logger.Discard())
//	        // ...
//	    })
//	}
package testdb

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"

	"github.com/phrazzld/meetrec/internal/store"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// Open opens (creating if needed) the SQLite database at path.
// Schema is managed separately by the migrations package.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + q.Encode()
	} else {
		dsn += "?" + q.Encode()
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapError translates driver errors into store errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case strings.Contains(err.Error(), "CHECK constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return err
}

// retryOnBusy runs op, retrying with capped exponential backoff while SQLite
// reports the database busy. Other errors return immediately.
func retryOnBusy(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(busyRetryAttempts-1,
		retry.WithCappedDuration(busyRetryMaxBackoff, retry.NewExponential(busyRetryInitialBackoff)))
	return retry.Do(ctx, backoff, func(context.Context) error {
		err := op()
		if isSQLiteBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

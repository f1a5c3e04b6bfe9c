// Package migrations embeds the schema for every supported database and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

// Supported database drivers, matching config.DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// Status describes one migration and whether it has been applied.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded schema for one driver.
type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// New creates a Migrator for driver over db.
func New(driver string, db *sql.DB, logger *slog.Logger) (*Migrator, error) {
	var dialect goose.Dialect
	switch driver {
	case DriverPostgres:
		dialect = goose.DialectPostgres
	case DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	fsys, err := fs.Sub(embedded, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		provider: provider,
		logger:   logger.With("component", "migrations", "driver", driver),
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	start := time.Now()
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		m.logResult(r)
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	m.logger.Info("migrations applied",
		"count", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if result != nil {
		m.logResult(result)
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Status reports every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status failed: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			Name:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the highest applied migration version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func (m *Migrator) logResult(r *goose.MigrationResult) {
	if r == nil || r.Source == nil {
		return
	}
	attrs := []any{
		"version", r.Source.Version,
		"file", r.Source.Path,
		"direction", r.Direction,
		"duration_ms", r.Duration.Milliseconds(),
	}
	if r.Error != nil {
		m.logger.Error("migration failed", append(attrs, "error", r.Error)...)
		return
	}
	m.logger.Info("migration applied", attrs...)
}

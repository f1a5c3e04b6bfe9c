package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/migrations"
	"github.com/phrazzld/meetrec/internal/platform/daily"
	"github.com/phrazzld/meetrec/internal/platform/gemini"
	"github.com/phrazzld/meetrec/internal/platform/postgres"
	"github.com/phrazzld/meetrec/internal/platform/redisnotify"
	"github.com/phrazzld/meetrec/internal/platform/s3blob"
	"github.com/phrazzld/meetrec/internal/platform/sqlite"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"go.uber.org/multierr"
)

// application holds the durable components every command shares. The
// remote clients are built separately by pipeline because only serve needs
// them.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	tasks      task.TaskStore
	recordings store.RecordingStore
	// notifier is nil unless Redis is configured.
	notifier *redisnotify.Notifier
	queue    *task.Queue
}

// newApplication opens the configured database and builds the stores and
// queue on top of it.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: log}

	var err error
	switch cfg.Database.Driver {
	case migrations.DriverPostgres:
		app.db, err = postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		app.tasks = postgres.NewPostgresTaskStore(app.db, log)
		app.recordings = postgres.NewPostgresRecordingStore(app.db, log)
	case migrations.DriverSQLite:
		app.db, err = sqlite.Open(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		app.tasks = sqlite.NewTaskStore(app.db, log)
		app.recordings = sqlite.NewRecordingStore(app.db, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	var notifier task.Notifier
	if cfg.Redis.URL != "" {
		app.notifier, err = redisnotify.Dial(ctx, cfg.Redis.URL, cfg.Redis.Channel, log)
		if err != nil {
			_ = app.db.Close()
			return nil, err
		}
		notifier = app.notifier
	}
	app.queue = task.NewQueue(app.tasks, notifier, log)

	log.Debug("application initialized",
		"database_driver", cfg.Database.Driver,
		"redis_enabled", app.notifier != nil)
	return app, nil
}

// migrator returns a Migrator for the configured driver.
func (app *application) migrator() (*migrations.Migrator, error) {
	return migrations.New(app.config.Database.Driver, app.db, app.logger)
}

// pipeline builds the remote clients and the recording pipeline. The remote
// client is returned too so the HTTP layer can create rooms with it.
func (app *application) pipeline(ctx context.Context) (*recording.Pipeline, *daily.Client, error) {
	remote, err := daily.NewClient(app.config.Daily, app.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create daily client: %w", err)
	}

	blobs, err := s3blob.New(ctx, app.config.Storage, app.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	// Leave the interface nil when disabled; a typed nil would look enabled.
	var transcriber recording.Transcriber
	if app.config.Transcription.Enabled {
		t, err := gemini.NewTranscriber(ctx, app.logger, app.config.Transcription)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create transcriber: %w", err)
		}
		transcriber = t
	}

	p, err := recording.NewPipeline(app.recordings, remote, blobs, transcriber, app.logger,
		recording.WithAwaitingMaxAge(app.config.Cleanup.AwaitingMaxAge))
	if err != nil {
		return nil, nil, err
	}
	return p, remote, nil
}

func (app *application) dispatcherConfig() task.DispatcherConfig {
	q := app.config.Queue
	return task.DispatcherConfig{
		Workers:                q.Workers,
		PollInterval:           q.PollInterval,
		HandlerTimeout:         q.HandlerTimeout,
		StuckTaskAge:           q.StuckTaskAge,
		StuckTaskCheckInterval: q.StuckTaskCheckInterval,
		RequeueAbandoned:       q.RequeueAbandoned,
	}
}

// close releases the database and the Redis connection.
func (app *application) close() error {
	var err error
	if app.notifier != nil {
		err = multierr.Append(err, app.notifier.Close())
	}
	if app.db != nil {
		err = multierr.Append(err, app.db.Close())
	}
	return err
}

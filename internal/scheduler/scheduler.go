// Package scheduler runs the periodic maintenance jobs: enqueueing
// cleanup_recordings and re-dispatching recordings that are still waiting
// for their artifact.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/robfig/cron/v3"
)

// Requeuer re-dispatches recordings awaiting their artifact.
type Requeuer interface {
	RequeueAwaiting(ctx context.Context) (int, error)
}

// Scheduler owns a cron instance with the maintenance entries registered.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer recording.Enqueuer
	requeuer Requeuer
	daysOld  int
	logger   *slog.Logger
	ctx      context.Context
}

// New registers the cleanup and awaiting-sweep jobs. Schedules use the
// standard five-field cron syntax or descriptors such as @daily and @every 10m.
func New(
	cfg config.CleanupConfig,
	enqueuer recording.Enqueuer,
	requeuer Requeuer,
	logger *slog.Logger,
) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, errors.New("enqueuer cannot be nil")
	}
	if requeuer == nil {
		return nil, errors.New("requeuer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	s := &Scheduler{
		enqueuer: enqueuer,
		requeuer: requeuer,
		daysOld:  cfg.DaysOld,
		logger:   logger,
		ctx:      context.Background(),
	}
	s.cron = cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.Recover(cronLogger{logger})))

	if _, err := s.cron.AddFunc(cfg.Schedule, s.EnqueueCleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.AwaitingSweepSchedule, s.SweepAwaiting); err != nil {
		return nil, fmt.Errorf("invalid awaiting sweep schedule %q: %w", cfg.AwaitingSweepSchedule, err)
	}
	return s, nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// EnqueueCleanup enqueues one cleanup_recordings task.
func (s *Scheduler) EnqueueCleanup() {
	days := s.daysOld
	id, err := s.enqueuer.Enqueue(s.ctx, task.TaskTypeCleanupRecordings,
		recording.CleanupRecordingsPayload{DaysOld: &days})
	if err != nil {
		s.logger.Error("failed to enqueue cleanup", "error", err)
		return
	}
	s.logger.Info("cleanup enqueued", "task_id", id, "days_old", days)
}

// SweepAwaiting re-dispatches every recording awaiting its artifact.
func (s *Scheduler) SweepAwaiting() {
	n, err := s.requeuer.RequeueAwaiting(s.ctx)
	if err != nil {
		s.logger.Error("awaiting sweep failed", "requeued", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("awaiting sweep requeued recordings", "count", n)
	}
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

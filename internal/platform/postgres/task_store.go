package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
)

const taskColumns = `id, task_type, payload, status, created_at, started_at, completed_at, error`

// PostgresTaskStore implements the task.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sql.DB, log *slog.Logger) *PostgresTaskStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: log.With(slog.String("component", "task_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t         task.Task
		status    string
		startedAt sql.NullTime
		doneAt    sql.NullTime
		errMsg    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Type, &t.Payload, &status, &t.CreatedAt, &startedAt, &doneAt, &errMsg); err != nil {
		return nil, err
	}
	t.Status = task.TaskStatus(status)
	if startedAt.Valid {
		ts := startedAt.Time
		t.StartedAt = &ts
	}
	if doneAt.Valid {
		ts := doneAt.Time
		t.CompletedAt = &ts
	}
	t.Error = errMsg.String
	return &t, nil
}

// Enqueue implements task.TaskStore.
func (s *PostgresTaskStore) Enqueue(ctx context.Context, taskType string, payload []byte) (int64, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (task_type, payload, status, created_at)
		 VALUES ($1, $2::jsonb, $3, $4)
		 RETURNING id`,
		taskType, string(payload), task.TaskStatusPending, s.now(),
	).Scan(&id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to enqueue task",
			slog.String("task_type", taskType),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to insert task: %w", MapError(err))
	}
	return id, nil
}

// Claim implements task.TaskStore. SKIP LOCKED lets concurrent claimers
// pass over a row another transaction is already claiming.
func (s *PostgresTaskStore) Claim(ctx context.Context) (*task.Task, error) {
	query := `
		UPDATE tasks
		SET status = $1, started_at = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $3
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRowContext(ctx, query,
		task.TaskStatusProcessing, s.now(), task.TaskStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return t, nil
}

// Complete implements task.TaskStore.
func (s *PostgresTaskStore) Complete(ctx context.Context, id int64) error {
	return s.finish(ctx, id, task.TaskStatusCompleted, nil)
}

// Fail implements task.TaskStore.
func (s *PostgresTaskStore) Fail(ctx context.Context, id int64, errMsg string) error {
	return s.finish(ctx, id, task.TaskStatusFailed, &errMsg)
}

func (s *PostgresTaskStore) finish(ctx context.Context, id int64, status task.TaskStatus, errMsg *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, completed_at = $2, error = $3
		 WHERE id = $4 AND status = $5`,
		status, s.now(), errMsg, id, task.TaskStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark task %d %s: %w", id, status, MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrTaskNotFound) {
		return err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: task %d is %s, not %s", store.ErrInvalidTransition, id, current.Status, task.TaskStatusProcessing)
}

// Get implements task.TaskStore.
func (s *PostgresTaskStore) Get(ctx context.Context, id int64) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// List implements task.TaskStore.
func (s *PostgresTaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("task_type = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// FailStale implements task.TaskStore.
func (s *PostgresTaskStore) FailStale(ctx context.Context, cutoff time.Time, errMsg string, requeue bool) ([]*task.Task, error) {
	var stale []*task.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		now := s.now()
		rows, err := tx.QueryContext(ctx, `
			UPDATE tasks
			SET status = $1, completed_at = $2, error = $3
			WHERE status = $4 AND started_at < $5
			RETURNING `+taskColumns,
			task.TaskStatusFailed, now, errMsg, task.TaskStatusProcessing, cutoff)
		if err != nil {
			return err
		}
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				_ = rows.Close()
				return err
			}
			stale = append(stale, t)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if !requeue {
			return nil
		}
		for _, t := range stale {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (task_type, payload, status, created_at) VALUES ($1, $2::jsonb, $3, $4)`,
				t.Type, string(t.Payload), task.TaskStatusPending, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fail stale tasks: %w", err)
	}
	slices.SortFunc(stale, func(a, b *task.Task) int { return cmp.Compare(a.ID, b.ID) })
	return stale, nil
}

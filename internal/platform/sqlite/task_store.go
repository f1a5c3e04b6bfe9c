package sqlite

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

// TaskStore implements task.TaskStore on SQLite.
type TaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ task.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore over db.
func NewTaskStore(db *sql.DB, log *slog.Logger) *TaskStore {
	if log == nil {
		log = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: log.With(slog.String("component", "task_store")),
		now:    time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t         task.Task
		payload   string
		status    string
		createdAt string
		startedAt sql.NullString
		doneAt    sql.NullString
		errMsg    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Type, &payload, &status, &createdAt, &startedAt, &doneAt, &errMsg); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if t.CompletedAt, err = parseNullTime(doneAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	t.Payload = []byte(payload)
	t.Status = task.TaskStatus(status)
	t.Error = errMsg.String
	return &t, nil
}

// Enqueue implements task.TaskStore.
func (s *TaskStore) Enqueue(ctx context.Context, taskType string, payload []byte) (int64, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO tasks (task_type, payload, status, created_at) VALUES (?, ?, ?, ?)`,
			taskType, string(payload), string(task.TaskStatusPending), formatTime(s.now()))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to enqueue task",
			slog.String("task_type", taskType),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to insert task: %w", mapError(err))
	}
	return id, nil
}

// Claim implements task.TaskStore. The select and the update run as one
// statement under SQLite's write lock, so two claimers never get the same row.
func (s *TaskStore) Claim(ctx context.Context) (*task.Task, error) {
	query := `
		UPDATE tasks
		SET status = ?, started_at = ?
		WHERE id = (SELECT id FROM tasks WHERE status = ? ORDER BY id LIMIT 1)
		  AND status = ?
		RETURNING ` + taskColumns

	var claimed *task.Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query,
			string(task.TaskStatusProcessing), formatTime(s.now()),
			string(task.TaskStatusPending), string(task.TaskStatusPending))
		t, err := scanTask(row)
		if err != nil {
			return err
		}
		claimed = t
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return claimed, nil
}

// Complete implements task.TaskStore.
func (s *TaskStore) Complete(ctx context.Context, id int64) error {
	return s.finish(ctx, id, task.TaskStatusCompleted, nil)
}

// Fail implements task.TaskStore.
func (s *TaskStore) Fail(ctx context.Context, id int64, errMsg string) error {
	return s.finish(ctx, id, task.TaskStatusFailed, &errMsg)
}

func (s *TaskStore) finish(ctx context.Context, id int64, status task.TaskStatus, errMsg *string) error {
	var msg any
	if errMsg != nil {
		msg = *errMsg
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, completed_at = ?, error = ? WHERE id = ? AND status = ?`,
			string(status), formatTime(s.now()), msg, id, string(task.TaskStatusProcessing))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark task %d %s: %w", id, status, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: task %d is %s, not %s", store.ErrInvalidTransition, id, current.Status, task.TaskStatusProcessing)
}

// Get implements task.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id int64) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// List implements task.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where = append(where, "task_type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
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
func (s *TaskStore) FailStale(ctx context.Context, cutoff time.Time, errMsg string, requeue bool) ([]*task.Task, error) {
	var stale []*task.Task
	err := retryOnBusy(ctx, func() error {
		stale = stale[:0]
		return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			now := formatTime(s.now())
			rows, err := tx.QueryContext(ctx, `
				UPDATE tasks
				SET status = ?, completed_at = ?, error = ?
				WHERE status = ? AND started_at < ?
				RETURNING `+taskColumns,
				string(task.TaskStatusFailed), now, errMsg, string(task.TaskStatusProcessing), formatTime(cutoff))
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
					`INSERT INTO tasks (task_type, payload, status, created_at) VALUES (?, ?, ?, ?)`,
					t.Type, string(t.Payload), string(task.TaskStatusPending), now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fail stale tasks: %w", err)
	}
	slices.SortFunc(stale, func(a, b *task.Task) int { return cmp.Compare(a.ID, b.ID) })
	return stale, nil
}

package task

import (
	"context"
	"fmt"
	"log/slog"
)

// Queue is the producer-side entry point: it encodes payloads, persists
// tasks through the TaskStore and wakes dispatchers.
type Queue struct {
	store    TaskStore
	notifier Notifier
	logger   *slog.Logger
}

// NewQueue creates a Queue. A nil notifier falls back to a LocalNotifier.
func NewQueue(store TaskStore, notifier Notifier, logger *slog.Logger) *Queue {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "task_queue"),
	}
}

// Notifier returns the notifier dispatchers created from this queue wait on.
func (q *Queue) Notifier() Notifier {
	return q.notifier
}

// Enqueue persists a pending task of taskType with payload encoded as JSON
// and returns its ID. The task is durable once Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any) (int64, error) {
	if taskType == "" {
		return 0, ErrEmptyTaskType
	}
	data, err := encodePayload(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}
	return q.enqueueRaw(ctx, taskType, data)
}

func (q *Queue) enqueueRaw(ctx context.Context, taskType string, payload []byte) (int64, error) {
	id, err := q.store.Enqueue(ctx, taskType, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}

	q.logger.Debug("task enqueued", "task_id", id, "task_type", taskType)

	// The task is already durable; a lost wake-up only delays it by one poll.
	if err := q.notifier.Notify(ctx); err != nil {
		q.logger.Warn("failed to notify dispatchers", "task_id", id, "error", err)
	}
	return id, nil
}

// Retry re-enqueues the payload of a failed task as a new pending task.
// The failed task itself is left untouched.
func (q *Queue) Retry(ctx context.Context, id int64) (int64, error) {
	t, err := q.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if t.Status != TaskStatusFailed {
		return 0, fmt.Errorf("%w: task %d is %s", ErrNotRetryable, id, t.Status)
	}
	newID, err := q.enqueueRaw(ctx, t.Type, t.Payload)
	if err != nil {
		return 0, err
	}
	q.logger.Info("failed task retried", "task_id", id, "new_task_id", newID, "task_type", t.Type)
	return newID, nil
}

// Get returns the task with the given ID.
func (q *Queue) Get(ctx context.Context, id int64) (*Task, error) {
	return q.store.Get(ctx, id)
}

// List returns tasks newest first.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	return q.store.List(ctx, filter)
}

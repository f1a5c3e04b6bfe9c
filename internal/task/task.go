package task

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task type constants
const (
	// TaskTypeStartRecording starts a remote recording for a meeting room.
	TaskTypeStartRecording = "start_recording"
	// TaskTypeProcessRecording fetches, stores and transcribes a finished recording.
	TaskTypeProcessRecording = "process_recording"
	// TaskTypeCleanupRecordings deletes stored recordings older than a cutoff.
	TaskTypeCleanupRecordings = "cleanup_recordings"
)

var (
	// ErrQueueEmpty is returned by Claim when no pending task exists.
	ErrQueueEmpty = errors.New("no pending tasks")

	// ErrUnregisteredType is the configuration error recorded when a claimed
	// task has no handler.
	ErrUnregisteredType = errors.New("no handler registered for task type")

	// ErrEmptyTaskType is returned when enqueuing without a task type.
	ErrEmptyTaskType = errors.New("task type cannot be empty")

	// ErrInvalidPayload is returned when a payload is not a JSON object.
	ErrInvalidPayload = errors.New("task payload must be a JSON object")

	// ErrNotRetryable is returned when retrying a task that has not failed.
	ErrNotRetryable = errors.New("only failed tasks can be retried")

	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("task handler panicked")
)

// Task is one persisted unit of background work.
type Task struct {
	ID          int64      `json:"id"`
	Type        string     `json:"task_type"`
	Payload     []byte     `json:"-"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Decode unmarshals the task payload into v.
func (t *Task) Decode(v any) error {
	return decodePayload(t.Payload, v)
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status TaskStatus
	Type   string
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// TaskStore defines the interface for persisting tasks.
// Implementations must make Claim atomic so that concurrent dispatchers,
// in one process or many, never claim the same row.
type TaskStore interface {
	// Enqueue persists a new pending task and returns its ID.
	Enqueue(ctx context.Context, taskType string, payload []byte) (int64, error)

	// Claim moves the oldest pending task to processing and returns it.
	// Returns ErrQueueEmpty when there is nothing to claim.
	Claim(ctx context.Context) (*Task, error)

	// Complete marks a processing task completed.
	// Returns store.ErrTaskNotFound or store.ErrInvalidTransition.
	Complete(ctx context.Context, id int64) error

	// Fail marks a processing task failed with errMsg.
	// Returns store.ErrTaskNotFound or store.ErrInvalidTransition.
	Fail(ctx context.Context, id int64, errMsg string) error

	// Get retrieves a task by ID.
	// Returns store.ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id int64) (*Task, error)

	// List returns tasks newest first.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	// FailStale fails every processing task started before cutoff and
	// returns them. With requeue set, a fresh pending copy of each is
	// inserted in the same transaction.
	FailStale(ctx context.Context, cutoff time.Time, errMsg string, requeue bool) ([]*Task, error)
}

// Handler executes one task type.
type Handler interface {
	Handle(ctx context.Context, t *Task) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, t *Task) error

// Handle calls f(ctx, t).
func (f HandlerFunc) Handle(ctx context.Context, t *Task) error {
	return f(ctx, t)
}

// encodePayload serializes v as a JSON object. Raw bytes are checked and
// passed through; nil becomes an empty object.
func encodePayload(v any) ([]byte, error) {
	var data []byte
	switch p := v.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		data = p
	default:
		b, err := sonic.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}

	var obj map[string]any
	if err := sonic.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, ErrInvalidPayload
	}
	return data, nil
}

func decodePayload(data []byte, v any) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	return sonic.Unmarshal(data, v)
}

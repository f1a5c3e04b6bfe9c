package api

import (
	"context"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
)

// RoomService creates and looks up remote meeting rooms.
type RoomService interface {
	CreateRoom(ctx context.Context, opts domain.RoomOptions) (*domain.Room, error)
	GetRoom(ctx context.Context, name string) (*domain.Room, error)
}

// TaskQueue is the subset of *task.Queue the API uses.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload any) (int64, error)
	Get(ctx context.Context, id int64) (*task.Task, error)
	List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error)
	Retry(ctx context.Context, id int64) (int64, error)
}

// RecordingReader reads the recording registry.
type RecordingReader interface {
	GetByUniqueID(ctx context.Context, uniqueID string) (*domain.Recording, error)
	List(ctx context.Context, status domain.RecordingStatus) ([]*domain.Recording, error)
}

// CompletionTrigger turns completion signals into process_recording tasks.
type CompletionTrigger interface {
	HandleWebhook(ctx context.Context, event domain.WebhookEvent) (*recording.Dispatch, error)
	HandleCompletion(ctx context.Context, uniqueID, recordingURL string) (*recording.Dispatch, error)
}

// WebhookVerifier authenticates remote service webhooks.
type WebhookVerifier interface {
	Verify(timestamp string, body []byte, signature string) error
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

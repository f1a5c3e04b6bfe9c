package recording

import (
	"context"

	"github.com/phrazzld/meetrec/internal/domain"
)

// RemoteService is the remote recording service.
type RemoteService interface {
	// StartRecording starts recording roomName and returns the remote recording ID.
	StartRecording(ctx context.Context, roomName, recordingID string, opts domain.RecordingOptions) (string, error)
	// GetRecording returns the remote status; DownloadURL is empty until the artifact is ready.
	GetRecording(ctx context.Context, recordingID string) (*domain.RemoteRecording, error)
	// Download fetches artifact bytes.
	Download(ctx context.Context, url string) ([]byte, error)
}

// BlobStore persists recording artifacts.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]domain.BlobObject, error)
	Delete(ctx context.Context, key string) error
}

// Transcriber turns media into text.
type Transcriber interface {
	Transcribe(ctx context.Context, media []byte, mimeType string) (string, error)
}

// Enqueuer persists new tasks. *task.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (int64, error)
}

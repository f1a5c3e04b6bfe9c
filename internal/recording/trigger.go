package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"go.uber.org/multierr"
)

// Dispatch describes a process_recording task enqueued by the Trigger.
type Dispatch struct {
	UniqueID string `json:"unique_id"`
	TaskID   int64  `json:"task_id"`
}

// Trigger turns completion signals into process_recording tasks.
type Trigger struct {
	registry store.RecordingStore
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewTrigger creates a Trigger.
func NewTrigger(registry store.RecordingStore, enqueuer Enqueuer, logger *slog.Logger) (*Trigger, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if enqueuer == nil {
		return nil, errors.New("enqueuer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		registry: registry,
		enqueuer: enqueuer,
		logger:   logger.With("component", "recording_trigger"),
	}, nil
}

// HandleWebhook handles a remote service event. Events other than
// recording.completed are ignored and return a nil Dispatch.
//
// The newest recording in the event's room that is still recording or
// awaiting its artifact is moved to processing and a process_recording task
// carrying the event's recording URL is enqueued.
func (t *Trigger) HandleWebhook(ctx context.Context, event domain.WebhookEvent) (*Dispatch, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)
	if event.Type != domain.WebhookRecordingCompleted {
		log.Debug("ignoring webhook event", "type", event.Type)
		return nil, nil
	}
	if event.Data.RoomName == "" || event.Data.RecordingURL == "" {
		return nil, fmt.Errorf("%w: room_name and recording_url are required", ErrInvalidWebhook)
	}

	rec, err := t.registry.FindLatestByRoom(ctx, event.Data.RoomName,
		domain.RecordingStatusRecording, domain.RecordingStatusAwaitingArtifact)
	if err != nil {
		return nil, fmt.Errorf("no active recording in room %s: %w", event.Data.RoomName, err)
	}
	return t.dispatch(ctx, rec, event.Data.RecordingURL)
}

// HandleCompletion enqueues processing for a known recording. recordingURL
// is optional and used when the remote service reports no download URL.
func (t *Trigger) HandleCompletion(ctx context.Context, uniqueID, recordingURL string) (*Dispatch, error) {
	rec, err := t.registry.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up recording %s: %w", uniqueID, err)
	}
	return t.dispatch(ctx, rec, recordingURL)
}

// RequeueAwaiting enqueues processing for every recording whose artifact was
// not ready on the last attempt and returns how many tasks were enqueued.
func (t *Trigger) RequeueAwaiting(ctx context.Context) (int, error) {
	recs, err := t.registry.List(ctx, domain.RecordingStatusAwaitingArtifact)
	if err != nil {
		return 0, fmt.Errorf("failed to list awaiting recordings: %w", err)
	}

	var errs error
	n := 0
	for _, rec := range recs {
		if _, err := t.dispatch(ctx, rec, rec.Metadata.String("recording_url")); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	if n > 0 {
		logger.FromContextOrDefault(ctx, t.logger).Info("awaiting recordings requeued", "count", n)
	}
	return n, errs
}

// dispatch moves rec to processing and enqueues its process_recording task.
// recordingURL is kept in metadata so the awaiting sweep can pass it on.
// When the enqueue fails the recording is parked in awaiting_artifact, where
// redelivered webhooks and the awaiting sweep can still find it.
func (t *Trigger) dispatch(ctx context.Context, rec *domain.Recording, recordingURL string) (*Dispatch, error) {
	log := logger.FromContextOrDefault(ctx, t.logger).With("unique_id", rec.UniqueID)

	moved := false
	switch rec.Status {
	case domain.RecordingStatusDeleted:
		return nil, fmt.Errorf("%w: %s", ErrRecordingDeleted, rec.UniqueID)
	case domain.RecordingStatusProcessing:
	default:
		var meta domain.Metadata
		if recordingURL != "" {
			meta = rec.Metadata.Merge(domain.Metadata{"recording_url": recordingURL})
		}
		if rec.Status == domain.RecordingStatusFailed {
			if meta == nil {
				meta = rec.Metadata.Clone()
			}
			archiveError(meta)
			delete(meta, "awaiting_since")
		}
		if err := t.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusProcessing, meta); err != nil {
			return nil, fmt.Errorf("failed to mark recording %s as processing: %w", rec.UniqueID, err)
		}
		if meta != nil {
			rec.Metadata = meta
		}
		moved = true
	}

	id, err := t.enqueuer.Enqueue(ctx, task.TaskTypeProcessRecording, ProcessRecordingPayload{
		RecordingID:  rec.UniqueID,
		RecordingURL: recordingURL,
	})
	if err != nil {
		if moved {
			t.park(ctx, log, rec)
		}
		return nil, fmt.Errorf("failed to enqueue processing of %s: %w", rec.UniqueID, err)
	}

	log.Info("recording processing enqueued", "task_id", id)
	return &Dispatch{UniqueID: rec.UniqueID, TaskID: id}, nil
}

// park returns a recording whose task could not be enqueued to
// awaiting_artifact. It runs detached from ctx so a cancelled request still
// leaves the recording where the sweep can reach it.
func (t *Trigger) park(ctx context.Context, log *slog.Logger, rec *domain.Recording) {
	meta := rec.Metadata.Clone()
	if _, ok := meta["awaiting_since"]; !ok {
		meta["awaiting_since"] = time.Now().UTC().Format(timeLayout)
	}
	err := t.registry.UpdateStatus(context.WithoutCancel(ctx), rec.UniqueID,
		domain.RecordingStatusAwaitingArtifact, meta)
	if err != nil {
		log.Error("failed to park recording after enqueue failure", "error", err)
		return
	}
	rec.Status = domain.RecordingStatusAwaitingArtifact
	rec.Metadata = meta
}

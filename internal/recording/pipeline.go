package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/redact"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"go.uber.org/multierr"
)

const timeLayout = time.RFC3339

// DefaultAwaitingMaxAge is how long a recording may wait for its artifact
// before it is failed.
const DefaultAwaitingMaxAge = 24 * time.Hour

// Pipeline runs the recording task handlers.
type Pipeline struct {
	registry    store.RecordingStore
	remote      RemoteService
	blobs       BlobStore
	transcriber Transcriber
	options     domain.RecordingOptions
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time

	awaitingMaxAge time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAwaitingMaxAge sets how long a recording may stay awaiting_artifact,
// measured from metadata.awaiting_since. Zero waits forever.
func WithAwaitingMaxAge(d time.Duration) Option {
	return func(p *Pipeline) {
		p.awaitingMaxAge = d
	}
}

// NewPipeline creates a Pipeline. transcriber may be nil, in which case
// recordings complete without a transcript.
func NewPipeline(
	registry store.RecordingStore,
	remote RemoteService,
	blobs BlobStore,
	transcriber Transcriber,
	logger *slog.Logger,
	opts ...Option,
) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if remote == nil {
		return nil, errors.New("remote service cannot be nil")
	}
	if blobs == nil {
		return nil, errors.New("blob store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		registry:       registry,
		remote:         remote,
		blobs:          blobs,
		transcriber:    transcriber,
		options:        domain.DefaultRecordingOptions(),
		validate:       validator.New(),
		logger:         logger.With("component", "recording_pipeline"),
		now:            func() time.Time { return time.Now().UTC() },
		awaitingMaxAge: DefaultAwaitingMaxAge,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handlers returns the task handlers keyed by task type, ready to pass to
// task.NewDispatcher.
func (p *Pipeline) Handlers() map[string]task.Handler {
	return map[string]task.Handler{
		task.TaskTypeStartRecording: task.HandlerFunc(func(ctx context.Context, t *task.Task) error {
			var payload StartRecordingPayload
			if err := p.decode(t, &payload); err != nil {
				return err
			}
			_, err := p.StartRecording(ctx, payload)
			return err
		}),
		task.TaskTypeProcessRecording: task.HandlerFunc(func(ctx context.Context, t *task.Task) error {
			var payload ProcessRecordingPayload
			if err := p.decode(t, &payload); err != nil {
				return err
			}
			return p.ProcessRecording(ctx, payload)
		}),
		task.TaskTypeCleanupRecordings: task.HandlerFunc(func(ctx context.Context, t *task.Task) error {
			var payload CleanupRecordingsPayload
			if err := p.decode(t, &payload); err != nil {
				return err
			}
			_, err := p.CleanupRecordings(ctx, payload)
			return err
		}),
	}
}

func (p *Pipeline) decode(t *task.Task, v any) error {
	if err := t.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", task.ErrInvalidPayload, err)
	}
	return p.check(v)
}

func (p *Pipeline) check(v any) error {
	if err := p.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", task.ErrInvalidPayload, err)
	}
	return nil
}

func (p *Pipeline) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, p.logger)
}

// StartRecording creates (or reuses) a recording, starts the remote
// recording and returns the recording's unique ID.
//
// A remote failure marks the recording failed with the response body in
// metadata.error and writes nothing to blob storage.
func (p *Pipeline) StartRecording(ctx context.Context, payload StartRecordingPayload) (string, error) {
	if err := p.check(payload); err != nil {
		return "", err
	}
	if payload.RoomName == "" {
		payload.RoomName = payload.MeetingID
	}

	rec, proceed, err := p.prepareStart(ctx, payload)
	if err != nil {
		return "", err
	}
	log := p.log(ctx).With("unique_id", rec.UniqueID, "meeting_id", rec.MeetingID)
	if !proceed {
		log.Info("recording already started, nothing to do", "status", rec.Status)
		return rec.UniqueID, nil
	}

	remoteID, err := p.remote.StartRecording(ctx, rec.RoomName, rec.RecordingID, p.options)
	if err != nil {
		log.Error("failed to start remote recording", "error", err)
		p.markFailed(ctx, rec, "Failed to start recording: "+errorDetail(err))
		return "", fmt.Errorf("failed to start recording %s: %w", rec.UniqueID, err)
	}
	if remoteID != "" && remoteID != rec.RecordingID {
		if err := p.registry.SetRecordingID(ctx, rec.UniqueID, remoteID); err != nil {
			return "", fmt.Errorf("failed to store remote recording id: %w", err)
		}
		rec.RecordingID = remoteID
	}

	meta := rec.Metadata.Merge(domain.Metadata{
		"meeting_id":         rec.MeetingID,
		"recording_id":       rec.RecordingID,
		"unique_id":          rec.UniqueID,
		"start_time":         p.now().Format(timeLayout),
		"status":             string(domain.RecordingStatusRecording),
		"room_url":           rec.RoomURL,
		"recording_settings": p.options.Metadata(),
	})

	if err := p.putMetadata(ctx, rec.UniqueID, meta); err != nil {
		log.Error("failed to store recording metadata", "error", err)
		p.markFailed(ctx, rec, "Failed to store metadata: "+err.Error())
		return "", err
	}

	if err := p.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusRecording, meta); err != nil {
		return "", fmt.Errorf("failed to mark recording %s as recording: %w", rec.UniqueID, err)
	}

	log.Info("recording started", "recording_id", rec.RecordingID)
	return rec.UniqueID, nil
}

// prepareStart returns the recording a start task works on and whether the
// remote recording still has to be started.
func (p *Pipeline) prepareStart(ctx context.Context, payload StartRecordingPayload) (*domain.Recording, bool, error) {
	if payload.UniqueID != "" {
		rec, err := p.registry.GetByUniqueID(ctx, payload.UniqueID)
		switch {
		case err == nil:
			return p.reuse(ctx, rec)
		case !errors.Is(err, store.ErrRecordingNotFound):
			return nil, false, fmt.Errorf("failed to look up recording %s: %w", payload.UniqueID, err)
		}
	}

	rec, err := domain.NewRecording(payload.MeetingID, payload.RoomName, payload.RoomURL)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", task.ErrInvalidPayload, err)
	}
	if payload.UniqueID != "" {
		rec.UniqueID = payload.UniqueID
	}
	if err := p.registry.Create(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("failed to create recording: %w", err)
	}
	p.log(ctx).Info("recording created", "unique_id", rec.UniqueID, "meeting_id", rec.MeetingID)
	return rec, true, nil
}

func (p *Pipeline) reuse(ctx context.Context, rec *domain.Recording) (*domain.Recording, bool, error) {
	switch rec.Status {
	case domain.RecordingStatusPending:
		return rec, true, nil
	case domain.RecordingStatusFailed:
		meta := rec.Metadata.Merge(domain.Metadata{"retried_at": p.now().Format(timeLayout)})
		archiveError(meta)
		if err := p.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusPending, meta); err != nil {
			return nil, false, fmt.Errorf("failed to reset recording %s: %w", rec.UniqueID, err)
		}
		rec.Status = domain.RecordingStatusPending
		rec.Metadata = meta
		p.log(ctx).Info("retrying failed recording", "unique_id", rec.UniqueID)
		return rec, true, nil
	case domain.RecordingStatusDeleted:
		return nil, false, fmt.Errorf("%w: %s", ErrRecordingDeleted, rec.UniqueID)
	default:
		return rec, false, nil
	}
}

// ProcessRecording fetches the finished artifact of a recording, stores it,
// transcribes it and marks the recording completed.
//
// A completed recording is left untouched. When the remote service has no
// download URL yet the recording moves to awaiting_artifact and the call
// succeeds; a later process_recording task picks it up.
func (p *Pipeline) ProcessRecording(ctx context.Context, payload ProcessRecordingPayload) error {
	if err := p.check(payload); err != nil {
		return err
	}
	log := p.log(ctx).With("unique_id", payload.RecordingID)

	rec, err := p.registry.GetByUniqueID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("failed to look up recording %s: %w", payload.RecordingID, err)
	}

	switch rec.Status {
	case domain.RecordingStatusCompleted:
		log.Info("recording already completed, nothing to do")
		return nil
	case domain.RecordingStatusDeleted:
		return fmt.Errorf("%w: %s", ErrRecordingDeleted, rec.UniqueID)
	case domain.RecordingStatusPending:
		return fmt.Errorf("%w: %s", ErrRecordingNotStarted, rec.UniqueID)
	case domain.RecordingStatusProcessing:
	default:
		var meta domain.Metadata
		if rec.Status == domain.RecordingStatusFailed {
			meta = rec.Metadata.Merge(domain.Metadata{"retried_at": p.now().Format(timeLayout)})
			archiveError(meta)
			delete(meta, "awaiting_since")
		}
		if err := p.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusProcessing, meta); err != nil {
			return fmt.Errorf("failed to mark recording %s as processing: %w", rec.UniqueID, err)
		}
		rec.Status = domain.RecordingStatusProcessing
		if meta != nil {
			rec.Metadata = meta
		}
	}

	remote, err := p.remote.GetRecording(ctx, rec.RecordingID)
	if err != nil {
		log.Error("failed to get remote recording", "error", err)
		p.markFailed(ctx, rec, "Failed to get recording: "+errorDetail(err))
		return fmt.Errorf("failed to get recording %s: %w", rec.UniqueID, err)
	}

	downloadURL := remote.DownloadURL
	if downloadURL == "" {
		downloadURL = payload.RecordingURL
	}
	if downloadURL == "" {
		return p.awaitArtifact(ctx, rec, remote.Status)
	}

	data, err := p.remote.Download(ctx, downloadURL)
	if err != nil {
		log.Error("failed to download recording",
			"url", redact.URL(downloadURL),
			"error", redact.Error(err))
		p.markFailed(ctx, rec, "Failed to download recording: "+redact.String(errorDetail(err)))
		return fmt.Errorf("failed to download recording %s: %w", rec.UniqueID, err)
	}

	contentType := mediaType(data)
	videoKey := ArtifactKey(rec.UniqueID, RecordingFile)
	if err := p.blobs.Put(ctx, videoKey, data, contentType); err != nil {
		log.Error("failed to store recording", "key", videoKey, "error", err)
		p.markFailed(ctx, rec, "Failed to store recording: "+err.Error())
		return err
	}

	meta := rec.Metadata.Merge(domain.Metadata{
		"status":       string(domain.RecordingStatusCompleted),
		"end_time":     p.now().Format(timeLayout),
		"s3_path":      videoKey,
		"file_size":    len(data),
		"content_type": contentType,
	})
	delete(meta, "awaiting_since")
	for k, v := range p.transcribe(ctx, rec.UniqueID, data, contentType) {
		meta[k] = v
	}

	if err := p.putMetadata(ctx, rec.UniqueID, meta); err != nil {
		log.Error("failed to store recording metadata", "error", err)
		p.markFailed(ctx, rec, "Failed to store metadata: "+err.Error())
		return err
	}

	if err := p.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusCompleted, meta); err != nil {
		return fmt.Errorf("failed to mark recording %s as completed: %w", rec.UniqueID, err)
	}

	log.Info("recording completed", "key", videoKey, "bytes", len(data))
	return nil
}

// transcribe returns the metadata describing the transcription outcome.
// Transcription failures are recorded, never returned.
func (p *Pipeline) transcribe(ctx context.Context, uniqueID string, media []byte, contentType string) domain.Metadata {
	if p.transcriber == nil {
		return nil
	}
	log := p.log(ctx).With("unique_id", uniqueID)

	text, err := p.transcriber.Transcribe(ctx, media, contentType)
	if err != nil {
		log.Warn("transcription failed", "error", err)
		return domain.Metadata{"transcription_error": err.Error()}
	}

	key := ArtifactKey(uniqueID, TranscriptFile)
	if err := p.blobs.Put(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		log.Warn("failed to store transcript", "key", key, "error", err)
		return domain.Metadata{"transcription_error": err.Error()}
	}
	return domain.Metadata{
		"transcript_path":   key,
		"transcript_length": len(text),
	}
}

// awaitArtifact parks a recording until its artifact is ready, or fails it
// once it has waited longer than awaitingMaxAge.
func (p *Pipeline) awaitArtifact(ctx context.Context, rec *domain.Recording, remoteStatus string) error {
	now := p.now()
	meta := rec.Metadata.Clone()
	if _, ok := meta["awaiting_since"]; !ok {
		meta["awaiting_since"] = now.Format(timeLayout)
	}
	meta["remote_status"] = remoteStatus

	if since, err := time.Parse(timeLayout, meta.String("awaiting_since")); err == nil &&
		p.awaitingMaxAge > 0 && now.Sub(since) > p.awaitingMaxAge {
		rec.Metadata = meta
		p.markFailed(ctx, rec, fmt.Sprintf("Recording artifact not available after %s (remote status %q)",
			p.awaitingMaxAge, remoteStatus))
		return fmt.Errorf("%w: %s", ErrArtifactUnavailable, rec.UniqueID)
	}

	if err := p.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusAwaitingArtifact, meta); err != nil {
		return fmt.Errorf("failed to mark recording %s as awaiting artifact: %w", rec.UniqueID, err)
	}
	p.log(ctx).Info("recording artifact not ready yet",
		"unique_id", rec.UniqueID,
		"remote_status", remoteStatus)
	return nil
}

// CleanupRecordings deletes every artifact older than the payload's age
// limit and marks each owning recording deleted once. Failures on individual
// objects do not stop the sweep; they are returned together at the end.
func (p *Pipeline) CleanupRecordings(ctx context.Context, payload CleanupRecordingsPayload) (CleanupReport, error) {
	var report CleanupReport
	if err := p.check(payload); err != nil {
		return report, err
	}
	days := payload.Days()
	log := p.log(ctx).With("days_old", days)

	objects, err := p.blobs.List(ctx, KeyPrefix)
	if err != nil {
		return report, fmt.Errorf("failed to list recordings: %w", err)
	}
	report.Scanned = len(objects)

	now := p.now()
	visited := make(map[string]bool)
	var errs error
	for _, obj := range objects {
		if ageInDays(now, obj.LastModified) <= days {
			continue
		}
		report.Expired++

		if uniqueID := UniqueIDFromKey(obj.Key); uniqueID != "" && !visited[uniqueID] {
			visited[uniqueID] = true
			deleted, err := p.markDeleted(ctx, uniqueID)
			if err != nil {
				log.Error("failed to mark recording deleted", "unique_id", uniqueID, "error", err)
				errs = multierr.Append(errs, err)
			} else if deleted {
				report.DeletedRecordings++
			}
		}

		if err := p.blobs.Delete(ctx, obj.Key); err != nil {
			log.Error("failed to delete object", "key", obj.Key, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		report.DeletedObjects++
	}

	log.Info("cleanup finished",
		"scanned", report.Scanned,
		"expired", report.Expired,
		"deleted_objects", report.DeletedObjects,
		"deleted_recordings", report.DeletedRecordings)
	return report, errs
}

// markDeleted moves a recording to deleted. Unknown and already deleted
// recordings are skipped.
func (p *Pipeline) markDeleted(ctx context.Context, uniqueID string) (bool, error) {
	rec, err := p.registry.GetByUniqueID(ctx, uniqueID)
	if errors.Is(err, store.ErrRecordingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.Status == domain.RecordingStatusDeleted {
		return false, nil
	}

	meta := rec.Metadata.Merge(domain.Metadata{"deleted_at": p.now().Format(timeLayout)})
	err = p.registry.UpdateStatus(ctx, uniqueID, domain.RecordingStatusDeleted, meta)
	if errors.Is(err, store.ErrInvalidTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func ageInDays(now, modified time.Time) int {
	return int(now.Sub(modified) / (24 * time.Hour))
}

func (p *Pipeline) putMetadata(ctx context.Context, uniqueID string, meta domain.Metadata) error {
	data, err := sonic.ConfigStd.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return p.blobs.Put(ctx, ArtifactKey(uniqueID, MetadataFile), data, "application/json")
}

// markFailed records msg as the recording's error. It runs detached from
// ctx so a timed-out handler still leaves a failed recording behind.
func (p *Pipeline) markFailed(ctx context.Context, rec *domain.Recording, msg string) {
	meta := rec.Metadata.Merge(domain.Metadata{
		"error":     msg,
		"failed_at": p.now().Format(timeLayout),
	})
	if err := p.registry.UpdateStatus(context.WithoutCancel(ctx), rec.UniqueID, domain.RecordingStatusFailed, meta); err != nil {
		p.log(ctx).Error("failed to mark recording failed",
			"unique_id", rec.UniqueID,
			"error", err)
		return
	}
	rec.Status = domain.RecordingStatusFailed
	rec.Metadata = meta
}

// archiveError moves a previous attempt's error out of the way so pollers
// only see errors from the current attempt.
func archiveError(meta domain.Metadata) {
	if prev, ok := meta["error"]; ok {
		meta["previous_error"] = prev
		delete(meta, "error")
	}
}

func errorDetail(err error) string {
	var remote *domain.RemoteServiceError
	if errors.As(err, &remote) {
		return remote.Detail()
	}
	return err.Error()
}

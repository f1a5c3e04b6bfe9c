package recording

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineRequiresDependencies(t *testing.T) {
	registry := newRegistry(t)

	_, err := NewPipeline(nil, &fakeRemote{}, newMemBlobs(), nil, nil)
	assert.EqualError(t, err, "registry cannot be nil")
	_, err = NewPipeline(registry, nil, newMemBlobs(), nil, nil)
	assert.EqualError(t, err, "remote service cannot be nil")
	_, err = NewPipeline(registry, &fakeRemote{}, nil, nil, nil)
	assert.EqualError(t, err, "blob store cannot be nil")

	p, err := NewPipeline(registry, &fakeRemote{}, newMemBlobs(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, p.Handlers(), 3)
}

func TestStartRecording(t *testing.T) {
	f := newPipelineFixture(t)
	f.remote.startID = "daily-rec-1"
	ctx := context.Background()

	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))

	require.NoError(t, err)
	assert.Equal(t, []string{"standup"}, f.remote.started)

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusRecording, rec.Status)
	assert.Equal(t, "daily-rec-1", rec.RecordingID)
	assert.Equal(t, "https://example.daily.co/standup", rec.Metadata.String("room_url"))
	assert.NotEmpty(t, rec.Metadata.String("start_time"))
	assert.Contains(t, rec.Metadata, "recording_settings")

	key := ArtifactKey(uniqueID, MetadataFile)
	assert.Equal(t, []string{key}, f.blobs.writes())
	var stored map[string]any
	require.NoError(t, sonic.Unmarshal(f.blobs.get(key), &stored))
	assert.Equal(t, uniqueID, stored["unique_id"])
	assert.Equal(t, "daily-rec-1", stored["recording_id"])
	assert.Equal(t, "recording", stored["status"])
}

func TestStartRecordingRemoteFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.remote.startErr = &domain.RemoteServiceError{
		Service:    "daily",
		Operation:  "start_recording",
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":"room not found"}`,
	}
	ctx := context.Background()

	_, err := f.pipeline.StartRecording(ctx, startPayload("ghost"))

	require.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Empty(t, f.blobs.writes(), "a failed start writes nothing to blob storage")

	recs, err := f.registry.List(ctx, domain.RecordingStatusFailed)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Metadata.String("error"), "room not found")
}

func TestStartRecordingMetadataWriteFailure(t *testing.T) {
	f := newPipelineFixture(t)
	payload := startPayload("standup")
	payload.UniqueID = domain.NewUniqueID()
	f.blobs.putErr[ArtifactKey(payload.UniqueID, MetadataFile)] = errBoom

	_, err := f.pipeline.StartRecording(context.Background(), payload)

	require.ErrorIs(t, err, domain.ErrStorage)
	rec, err := f.registry.GetByUniqueID(context.Background(), payload.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusFailed, rec.Status)
	assert.Contains(t, rec.Metadata.String("error"), "Failed to store metadata")
}

func TestStartRecordingIsIdempotentByUniqueID(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	payload := startPayload("standup")
	payload.UniqueID = domain.NewUniqueID()

	first, err := f.pipeline.StartRecording(ctx, payload)
	require.NoError(t, err)
	second, err := f.pipeline.StartRecording(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, payload.UniqueID, first)
	assert.Equal(t, first, second)
	assert.Len(t, f.remote.started, 1, "the remote recording is started once")
}

func TestStartRecordingRetriesFailedRecording(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	payload := startPayload("standup")
	payload.UniqueID = domain.NewUniqueID()

	f.remote.startErr = &domain.RemoteServiceError{Service: "daily", Operation: "start_recording", StatusCode: 500, Body: "down"}
	_, err := f.pipeline.StartRecording(ctx, payload)
	require.Error(t, err)

	f.remote.startErr = nil
	uniqueID, err := f.pipeline.StartRecording(ctx, payload)
	require.NoError(t, err)

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusRecording, rec.Status)
	assert.NotContains(t, rec.Metadata, "error")
	assert.Equal(t, "Failed to start recording: down", rec.Metadata.String("previous_error"))
	assert.NotEmpty(t, rec.Metadata.String("retried_at"))
}

func TestStartRecordingRejectsDeletedRecording(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	payload := startPayload("standup")
	payload.UniqueID = domain.NewUniqueID()
	_, err := f.pipeline.StartRecording(ctx, payload)
	require.NoError(t, err)
	require.NoError(t, f.registry.UpdateStatus(ctx, payload.UniqueID, domain.RecordingStatusDeleted, nil))

	_, err = f.pipeline.StartRecording(ctx, payload)

	assert.ErrorIs(t, err, ErrRecordingDeleted)
	assert.Len(t, f.remote.started, 1)
}

func TestStartRecordingValidatesPayload(t *testing.T) {
	f := newPipelineFixture(t)

	tests := []StartRecordingPayload{
		{RoomURL: "https://example.daily.co/x"},
		{MeetingID: "x"},
		{MeetingID: "x", RoomURL: "not a url"},
		{MeetingID: "x", RoomURL: "https://example.daily.co/x", UniqueID: "bogus"},
	}
	for _, payload := range tests {
		_, err := f.pipeline.StartRecording(context.Background(), payload)
		assert.ErrorIs(t, err, task.ErrInvalidPayload)
	}
	assert.Empty(t, f.remote.started)
}

func TestProcessRecordingUnknownID(t *testing.T) {
	f := newPipelineFixture(t)

	err := f.pipeline.ProcessRecording(context.Background(), ProcessRecordingPayload{RecordingID: "rec_missing"})

	require.ErrorIs(t, err, store.ErrRecordingNotFound)
	assert.True(t, store.IsNotFoundError(err))
	assert.Empty(t, f.blobs.writes())
	assert.Empty(t, f.remote.downloaded)
}

func TestStartThenProcessRoundTrip(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.recording = &domain.RemoteRecording{ID: "r", Status: "finished", DownloadURL: "https://cdn.example/r.mp4"}

	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID})
	require.NoError(t, err)

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusCompleted, rec.Status)

	videoKey := ArtifactKey(uniqueID, RecordingFile)
	assert.Equal(t, videoKey, rec.Metadata.String("s3_path"))
	assert.Contains(t, f.blobs.writes(), videoKey)
	assert.Equal(t, []byte("mp4-bytes"), f.blobs.get(videoKey))
	assert.Equal(t, []string{"https://cdn.example/r.mp4"}, f.remote.downloaded)
	assert.NotEmpty(t, rec.Metadata.String("end_time"))
	assert.NotEmpty(t, rec.Metadata.String("start_time"), "metadata accumulates across steps")
	assert.EqualValues(t, len("mp4-bytes"), rec.Metadata["file_size"])

	transcriptKey := ArtifactKey(uniqueID, TranscriptFile)
	assert.Equal(t, transcriptKey, rec.Metadata.String("transcript_path"))
	assert.Equal(t, []byte("Speaker 1: hello"), f.blobs.get(transcriptKey))

	var stored map[string]any
	require.NoError(t, sonic.Unmarshal(f.blobs.get(ArtifactKey(uniqueID, MetadataFile)), &stored))
	assert.Equal(t, "completed", stored["status"])
	assert.Equal(t, videoKey, stored["s3_path"])
}

func TestProcessRecordingCompletedIsNoOp(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.recording = &domain.RemoteRecording{ID: "r", DownloadURL: "https://cdn.example/r.mp4"}
	require.NoError(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	before, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	writes := len(f.blobs.writes())

	require.NoError(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	after, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, before.Metadata, after.Metadata)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Len(t, f.blobs.writes(), writes)
	assert.Len(t, f.remote.downloaded, 1)
}

func TestProcessRecordingWithoutDownloadURLAwaitsArtifact(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)

	require.NoError(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusAwaitingArtifact, rec.Status)
	assert.NotEmpty(t, rec.Metadata.String("awaiting_since"))
	assert.Equal(t, "in-progress", rec.Metadata.String("remote_status"))
	assert.Empty(t, f.remote.downloaded)

	// The webhook-supplied URL is used when the remote still reports none.
	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{
		RecordingID:  uniqueID,
		RecordingURL: "https://hooks.example/r.mp4",
	})
	require.NoError(t, err)

	rec, err = f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusCompleted, rec.Status)
	assert.NotContains(t, rec.Metadata, "awaiting_since")
	assert.Equal(t, []string{"https://hooks.example/r.mp4"}, f.remote.downloaded)
}

func TestProcessRecordingRemoteFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.getErr = &domain.RemoteServiceError{Service: "daily", Operation: "get_recording", StatusCode: 404, Body: "not-found"}

	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID})

	require.ErrorIs(t, err, domain.ErrRemoteService)
	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusFailed, rec.Status)
	assert.Equal(t, "Failed to get recording: not-found", rec.Metadata.String("error"))
}

func TestProcessRecordingAfterFailureArchivesError(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.getErr = &domain.RemoteServiceError{Service: "daily", Operation: "get_recording", StatusCode: 503, Body: "unavailable"}
	require.Error(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	f.remote.getErr = nil
	f.remote.recording = &domain.RemoteRecording{ID: "r", DownloadURL: "https://cdn.example/r.mp4"}
	require.NoError(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusCompleted, rec.Status)
	assert.NotContains(t, rec.Metadata, "error")
	assert.Equal(t, "Failed to get recording: unavailable", rec.Metadata.String("previous_error"))
	assert.NotEmpty(t, rec.Metadata.String("retried_at"))
}

func TestProcessRecordingFailsAfterAwaitingTooLong(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	f.pipeline.now = func() time.Time { return now }
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	payload := ProcessRecordingPayload{RecordingID: uniqueID}

	require.NoError(t, f.pipeline.ProcessRecording(ctx, payload))

	now = now.Add(DefaultAwaitingMaxAge - time.Hour)
	require.NoError(t, f.pipeline.ProcessRecording(ctx, payload))
	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusAwaitingArtifact, rec.Status)

	now = now.Add(2 * time.Hour)
	err = f.pipeline.ProcessRecording(ctx, payload)

	require.ErrorIs(t, err, ErrArtifactUnavailable)
	rec, err = f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusFailed, rec.Status)
	assert.Contains(t, rec.Metadata.String("error"), "artifact not available")
	assert.Empty(t, f.remote.downloaded)
}

func TestProcessRecordingAwaitsForeverWithoutMaxAge(t *testing.T) {
	registry := newRegistry(t)
	remote := &fakeRemote{}
	p, err := NewPipeline(registry, remote, newMemBlobs(), nil, logger.Discard(), WithAwaitingMaxAge(0))
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now().UTC()
	p.now = func() time.Time { return now }
	uniqueID, err := p.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)

	require.NoError(t, p.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))
	now = now.Add(30 * 24 * time.Hour)
	require.NoError(t, p.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	rec, err := registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusAwaitingArtifact, rec.Status)
}

func TestProcessRecordingDownloadFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.recording = &domain.RemoteRecording{ID: "r", DownloadURL: "https://cdn.example/r.mp4"}
	f.remote.downloadErr = errBoom

	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID})

	require.ErrorIs(t, err, errBoom)
	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusFailed, rec.Status)
	assert.False(t, f.blobs.has(ArtifactKey(uniqueID, RecordingFile)))
}

func TestProcessRecordingTranscriptionFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.transcriber.err = errBoom
	ctx := context.Background()
	uniqueID, err := f.pipeline.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)
	f.remote.recording = &domain.RemoteRecording{ID: "r", DownloadURL: "https://cdn.example/r.mp4"}

	require.NoError(t, f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	rec, err := f.registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusCompleted, rec.Status)
	assert.Equal(t, "boom", rec.Metadata.String("transcription_error"))
	assert.False(t, f.blobs.has(ArtifactKey(uniqueID, TranscriptFile)))
}

func TestProcessRecordingWithoutTranscriber(t *testing.T) {
	registry := newRegistry(t)
	remote := &fakeRemote{artifact: []byte("v"), recording: &domain.RemoteRecording{DownloadURL: "https://cdn.example/r.mp4"}}
	blobs := newMemBlobs()
	p, err := NewPipeline(registry, remote, blobs, nil, logger.Discard())
	require.NoError(t, err)
	ctx := context.Background()
	uniqueID, err := p.StartRecording(ctx, startPayload("standup"))
	require.NoError(t, err)

	require.NoError(t, p.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: uniqueID}))

	rec, err := registry.GetByUniqueID(ctx, uniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusCompleted, rec.Status)
	assert.NotContains(t, rec.Metadata, "transcript_path")
	assert.NotContains(t, rec.Metadata, "transcription_error")
}

func TestProcessRecordingRefusesPendingAndDeleted(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	pending, err := domain.NewRecording("m1", "m1", "https://example.daily.co/m1")
	require.NoError(t, err)
	require.NoError(t, f.registry.Create(ctx, pending))

	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: pending.UniqueID})
	assert.ErrorIs(t, err, ErrRecordingNotStarted)

	require.NoError(t, f.registry.UpdateStatus(ctx, pending.UniqueID, domain.RecordingStatusDeleted, nil))
	err = f.pipeline.ProcessRecording(ctx, ProcessRecordingPayload{RecordingID: pending.UniqueID})
	assert.ErrorIs(t, err, ErrRecordingDeleted)
	assert.Empty(t, f.blobs.writes())
}

func TestCleanupRecordings(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	f.pipeline.now = func() time.Time { return now }

	oldID, err := f.pipeline.StartRecording(ctx, startPayload("old"))
	require.NoError(t, err)
	newID, err := f.pipeline.StartRecording(ctx, startPayload("new"))
	require.NoError(t, err)

	f.blobs.seed(ArtifactKey(oldID, MetadataFile), now.Add(-31*24*time.Hour))
	f.blobs.seed(ArtifactKey(oldID, RecordingFile), now.Add(-40*24*time.Hour))
	f.blobs.seed(ArtifactKey(newID, MetadataFile), now.Add(-29*24*time.Hour))
	// Exactly 30 whole days is not older than the limit.
	f.blobs.seed(ArtifactKey(newID, RecordingFile), now.Add(-30*24*time.Hour-time.Hour))
	f.blobs.seed(ArtifactKey("rec_unknown", MetadataFile), now.Add(-60*24*time.Hour))

	report, err := f.pipeline.CleanupRecordings(ctx, CleanupRecordingsPayload{})

	require.NoError(t, err)
	assert.Equal(t, CleanupReport{Scanned: 5, Expired: 3, DeletedObjects: 3, DeletedRecordings: 1}, report)

	assert.False(t, f.blobs.has(ArtifactKey(oldID, MetadataFile)))
	assert.False(t, f.blobs.has(ArtifactKey(oldID, RecordingFile)))
	assert.False(t, f.blobs.has(ArtifactKey("rec_unknown", MetadataFile)))
	assert.True(t, f.blobs.has(ArtifactKey(newID, MetadataFile)))
	assert.True(t, f.blobs.has(ArtifactKey(newID, RecordingFile)))

	oldRec, err := f.registry.GetByUniqueID(ctx, oldID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusDeleted, oldRec.Status)
	assert.Equal(t, now.Format(time.RFC3339), oldRec.Metadata.String("deleted_at"))

	newRec, err := f.registry.GetByUniqueID(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusRecording, newRec.Status)
}

func TestCleanupRecordingsCustomAge(t *testing.T) {
	f := newPipelineFixture(t)
	now := time.Now().UTC()
	f.pipeline.now = func() time.Time { return now }
	f.blobs.seed(ArtifactKey("rec_a", RecordingFile), now.Add(-3*24*time.Hour))
	f.blobs.seed(ArtifactKey("rec_b", RecordingFile), now.Add(-time.Hour))

	days := 1
	report, err := f.pipeline.CleanupRecordings(context.Background(), CleanupRecordingsPayload{DaysOld: &days})

	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedObjects)
	assert.True(t, f.blobs.has(ArtifactKey("rec_b", RecordingFile)))
}

func TestCleanupRecordingsContinuesPastFailures(t *testing.T) {
	f := newPipelineFixture(t)
	now := time.Now().UTC()
	f.pipeline.now = func() time.Time { return now }
	old := now.Add(-45 * 24 * time.Hour)
	f.blobs.seed(ArtifactKey("rec_a", RecordingFile), old)
	f.blobs.seed(ArtifactKey("rec_b", RecordingFile), old)
	f.blobs.seed(ArtifactKey("rec_c", RecordingFile), old)
	f.blobs.deleteErr[ArtifactKey("rec_a", RecordingFile)] = errBoom
	f.blobs.deleteErr[ArtifactKey("rec_c", RecordingFile)] = errBoom

	report, err := f.pipeline.CleanupRecordings(context.Background(), CleanupRecordingsPayload{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, 3, report.Expired)
	assert.Equal(t, 1, report.DeletedObjects)
	assert.False(t, f.blobs.has(ArtifactKey("rec_b", RecordingFile)))
}

func TestHandlersDecodePayloads(t *testing.T) {
	f := newPipelineFixture(t)
	handlers := f.pipeline.Handlers()
	ctx := context.Background()

	err := handlers[task.TaskTypeStartRecording].Handle(ctx, &task.Task{
		Type:    task.TaskTypeStartRecording,
		Payload: []byte(`{"meeting_id":"standup","room_url":"https://example.daily.co/standup"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"standup"}, f.remote.started)

	err = handlers[task.TaskTypeProcessRecording].Handle(ctx, &task.Task{
		Type:    task.TaskTypeProcessRecording,
		Payload: []byte(`{}`),
	})
	assert.ErrorIs(t, err, task.ErrInvalidPayload)

	err = handlers[task.TaskTypeCleanupRecordings].Handle(ctx, &task.Task{
		Type:    task.TaskTypeCleanupRecordings,
		Payload: []byte(`{"days_old":"soon"}`),
	})
	assert.ErrorIs(t, err, task.ErrInvalidPayload)

	err = handlers[task.TaskTypeCleanupRecordings].Handle(ctx, &task.Task{
		Type:    task.TaskTypeCleanupRecordings,
		Payload: []byte(`{"days_old":30}`),
	})
	assert.NoError(t, err)
}

func TestUniqueIDFromKey(t *testing.T) {
	assert.Equal(t, "rec_abc", UniqueIDFromKey("recordings/rec_abc/recording.mp4"))
	assert.Equal(t, "", UniqueIDFromKey("recordings/rec_abc"))
	assert.Equal(t, "", UniqueIDFromKey("other/rec_abc/recording.mp4"))
	assert.Equal(t, "", UniqueIDFromKey("recordings//recording.mp4"))
}

package recording

import (
	"context"
	"testing"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerFixture struct {
	trigger  *Trigger
	registry store.RecordingStore
	enqueuer *captureEnqueuer
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()
	f := &triggerFixture{registry: newRegistry(t), enqueuer: &captureEnqueuer{}}
	tr, err := NewTrigger(f.registry, f.enqueuer, logger.Discard())
	require.NoError(t, err)
	f.trigger = tr
	return f
}

// createInStatus inserts a recording for room and walks it to status.
func (f *triggerFixture) createInStatus(t *testing.T, room string, path ...domain.RecordingStatus) *domain.Recording {
	t.Helper()
	ctx := context.Background()
	rec, err := domain.NewRecording(room, room, "https://example.daily.co/"+room)
	require.NoError(t, err)
	require.NoError(t, f.registry.Create(ctx, rec))
	for _, s := range path {
		require.NoError(t, f.registry.UpdateStatus(ctx, rec.UniqueID, s, nil))
		rec.Status = s
	}
	return rec
}

func completedEvent(room, url string) domain.WebhookEvent {
	return domain.WebhookEvent{
		Type: domain.WebhookRecordingCompleted,
		Data: domain.WebhookEventData{RoomName: room, RecordingURL: url},
	}
}

func TestNewTriggerRequiresDependencies(t *testing.T) {
	_, err := NewTrigger(nil, &captureEnqueuer{}, nil)
	assert.Error(t, err)
	_, err = NewTrigger(newRegistry(t), nil, nil)
	assert.Error(t, err)
}

func TestHandleWebhook(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	rec := f.createInStatus(t, "standup", domain.RecordingStatusRecording)

	dispatch, err := f.trigger.HandleWebhook(ctx, completedEvent("standup", "https://cdn.example/r.mp4"))

	require.NoError(t, err)
	require.NotNil(t, dispatch)
	assert.Equal(t, rec.UniqueID, dispatch.UniqueID)
	assert.Equal(t, int64(1), dispatch.TaskID)

	got, err := f.registry.GetByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusProcessing, got.Status)

	require.Len(t, f.enqueuer.tasks, 1)
	assert.Equal(t, task.TaskTypeProcessRecording, f.enqueuer.tasks[0].taskType)
	assert.Equal(t, ProcessRecordingPayload{
		RecordingID:  rec.UniqueID,
		RecordingURL: "https://cdn.example/r.mp4",
	}, f.enqueuer.tasks[0].payload)
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newTriggerFixture(t)
	f.createInStatus(t, "standup", domain.RecordingStatusRecording)

	dispatch, err := f.trigger.HandleWebhook(context.Background(), domain.WebhookEvent{
		Type: "recording.started",
		Data: domain.WebhookEventData{RoomName: "standup"},
	})

	require.NoError(t, err)
	assert.Nil(t, dispatch)
	assert.Empty(t, f.enqueuer.tasks)
}

func TestHandleWebhookRejectsIncompleteEvents(t *testing.T) {
	f := newTriggerFixture(t)

	_, err := f.trigger.HandleWebhook(context.Background(), completedEvent("", "https://cdn.example/r.mp4"))
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	_, err = f.trigger.HandleWebhook(context.Background(), completedEvent("standup", ""))
	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestHandleWebhookWithoutActiveRecording(t *testing.T) {
	f := newTriggerFixture(t)
	f.createInStatus(t, "standup", domain.RecordingStatusRecording, domain.RecordingStatusCompleted)

	_, err := f.trigger.HandleWebhook(context.Background(), completedEvent("standup", "https://cdn.example/r.mp4"))

	assert.ErrorIs(t, err, store.ErrRecordingNotFound)
	assert.Empty(t, f.enqueuer.tasks)
}

func TestHandleCompletion(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	rec := f.createInStatus(t, "standup", domain.RecordingStatusRecording, domain.RecordingStatusProcessing)

	dispatch, err := f.trigger.HandleCompletion(ctx, rec.UniqueID, "")

	require.NoError(t, err)
	assert.Equal(t, rec.UniqueID, dispatch.UniqueID)
	require.Len(t, f.enqueuer.tasks, 1)

	_, err = f.trigger.HandleCompletion(ctx, "rec_missing", "")
	assert.ErrorIs(t, err, store.ErrRecordingNotFound)

	completed := f.createInStatus(t, "done", domain.RecordingStatusRecording, domain.RecordingStatusCompleted)
	_, err = f.trigger.HandleCompletion(ctx, completed.UniqueID, "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	deleted := f.createInStatus(t, "gone", domain.RecordingStatusDeleted)
	_, err = f.trigger.HandleCompletion(ctx, deleted.UniqueID, "")
	assert.ErrorIs(t, err, ErrRecordingDeleted)
	assert.Len(t, f.enqueuer.tasks, 1)
}

func TestHandleCompletionOfFailedRecordingArchivesError(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	rec := f.createInStatus(t, "standup", domain.RecordingStatusRecording)
	require.NoError(t, f.registry.UpdateStatus(ctx, rec.UniqueID, domain.RecordingStatusFailed,
		domain.Metadata{"error": "Failed to get recording: down"}))

	_, err := f.trigger.HandleCompletion(ctx, rec.UniqueID, "")
	require.NoError(t, err)

	got, err := f.registry.GetByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusProcessing, got.Status)
	assert.NotContains(t, got.Metadata, "error")
	assert.Equal(t, "Failed to get recording: down", got.Metadata.String("previous_error"))
}

func TestRequeueAwaiting(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	a := f.createInStatus(t, "a", domain.RecordingStatusRecording, domain.RecordingStatusAwaitingArtifact)
	b := f.createInStatus(t, "b", domain.RecordingStatusRecording, domain.RecordingStatusAwaitingArtifact)
	f.createInStatus(t, "c", domain.RecordingStatusRecording)

	n, err := f.trigger.RequeueAwaiting(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.enqueuer.tasks, 2)
	for _, id := range []string{a.UniqueID, b.UniqueID} {
		rec, err := f.registry.GetByUniqueID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RecordingStatusProcessing, rec.Status)
	}

	n, err = f.trigger.RequeueAwaiting(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequeueAwaitingCollectsEnqueueErrors(t *testing.T) {
	f := newTriggerFixture(t)
	f.createInStatus(t, "a", domain.RecordingStatusRecording, domain.RecordingStatusAwaitingArtifact)
	f.enqueuer.err = errBoom

	n, err := f.trigger.RequeueAwaiting(context.Background())

	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, n)

	recs, err := f.registry.List(context.Background(), domain.RecordingStatusAwaitingArtifact)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "recording must stay visible to the next sweep")
}

func TestHandleWebhookEnqueueFailureLeavesRecordingReachable(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	rec := f.createInStatus(t, "standup", domain.RecordingStatusRecording)
	f.enqueuer.err = errBoom

	_, err := f.trigger.HandleWebhook(ctx, completedEvent("standup", "https://cdn.example/r.mp4"))
	require.ErrorIs(t, err, errBoom)

	got, err := f.registry.GetByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusAwaitingArtifact, got.Status)
	assert.Equal(t, "https://cdn.example/r.mp4", got.Metadata.String("recording_url"))
	assert.NotEmpty(t, got.Metadata.String("awaiting_since"))

	// A redelivered webhook finds the recording again once the queue recovers.
	f.enqueuer.err = nil
	dispatch, err := f.trigger.HandleWebhook(ctx, completedEvent("standup", "https://cdn.example/r.mp4"))
	require.NoError(t, err)
	assert.Equal(t, rec.UniqueID, dispatch.UniqueID)

	got, err = f.registry.GetByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatusProcessing, got.Status)
}

func TestRequeueAwaitingPassesStoredRecordingURL(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	rec := f.createInStatus(t, "standup", domain.RecordingStatusRecording)
	f.enqueuer.err = errBoom
	_, err := f.trigger.HandleWebhook(ctx, completedEvent("standup", "https://cdn.example/r.mp4"))
	require.ErrorIs(t, err, errBoom)
	f.enqueuer.err = nil

	n, err := f.trigger.RequeueAwaiting(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.enqueuer.tasks, 1)
	assert.Equal(t, ProcessRecordingPayload{
		RecordingID:  rec.UniqueID,
		RecordingURL: "https://cdn.example/r.mp4",
	}, f.enqueuer.tasks[0].payload)
}

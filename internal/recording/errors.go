package recording

import "errors"

var (
	// ErrRecordingDeleted is returned when work is requested for a deleted recording.
	ErrRecordingDeleted = errors.New("recording has been deleted")

	// ErrRecordingNotStarted is returned when processing a recording that never started.
	ErrRecordingNotStarted = errors.New("recording has not started")

	// ErrArtifactUnavailable is returned when a recording waited too long for
	// the remote service to produce its artifact.
	ErrArtifactUnavailable = errors.New("recording artifact not available")

	// ErrInvalidWebhook is returned for completion events missing room or artifact.
	ErrInvalidWebhook = errors.New("invalid webhook event")
)

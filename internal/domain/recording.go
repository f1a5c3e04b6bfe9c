package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordingStatus represents the lifecycle state of a recording attempt.
type RecordingStatus string

// Possible recording status values
const (
	RecordingStatusPending   RecordingStatus = "pending"
	RecordingStatusRecording RecordingStatus = "recording"
	// RecordingStatusProcessing means a completion signal arrived and the
	// artifact fetch has been queued.
	RecordingStatusProcessing RecordingStatus = "processing"
	// RecordingStatusAwaitingArtifact means the remote service reported no
	// download URL yet; the recording is retried by the awaiting sweep.
	RecordingStatusAwaitingArtifact RecordingStatus = "awaiting_artifact"
	RecordingStatusCompleted        RecordingStatus = "completed"
	RecordingStatusFailed           RecordingStatus = "failed"
	RecordingStatusDeleted          RecordingStatus = "deleted"
)

// UniqueIDPrefix prefixes every generated recording unique ID.
const UniqueIDPrefix = "rec_"

// Common validation errors for Recording
var (
	ErrEmptyUniqueID          = errors.New("recording unique ID cannot be empty")
	ErrEmptyMeetingID         = errors.New("recording meeting ID cannot be empty")
	ErrEmptyRecordingID       = errors.New("recording remote ID cannot be empty")
	ErrInvalidRecordingStatus = errors.New("invalid recording status")
)

// transitions lists, for every target status, the statuses a recording may
// move from. Deleted recordings never move again.
var transitions = map[RecordingStatus][]RecordingStatus{
	RecordingStatusPending:   {RecordingStatusFailed},
	RecordingStatusRecording: {RecordingStatusPending},
	RecordingStatusProcessing: {
		RecordingStatusRecording, RecordingStatusAwaitingArtifact, RecordingStatusFailed,
	},
	RecordingStatusAwaitingArtifact: {
		RecordingStatusRecording, RecordingStatusProcessing, RecordingStatusAwaitingArtifact,
	},
	RecordingStatusCompleted: {
		RecordingStatusRecording, RecordingStatusProcessing, RecordingStatusAwaitingArtifact,
		RecordingStatusFailed,
	},
	RecordingStatusFailed: {
		RecordingStatusPending, RecordingStatusRecording, RecordingStatusProcessing,
		RecordingStatusAwaitingArtifact, RecordingStatusFailed,
	},
	RecordingStatusDeleted: {
		RecordingStatusPending, RecordingStatusRecording, RecordingStatusProcessing,
		RecordingStatusAwaitingArtifact, RecordingStatusCompleted, RecordingStatusFailed,
	},
}

// Recording tracks one remote recording attempt's lifecycle.
type Recording struct {
	UniqueID    string          `json:"unique_id"`
	MeetingID   string          `json:"meeting_id"`
	RecordingID string          `json:"recording_id"`
	RoomName    string          `json:"room_name"`
	RoomURL     string          `json:"room_url"`
	Status      RecordingStatus `json:"status"`
	Metadata    Metadata        `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRecording creates a pending Recording with a fresh unique ID and a local
// remote-correlation ID derived from the meeting ID and the creation time.
func NewRecording(meetingID, roomName, roomURL string) (*Recording, error) {
	now := time.Now().UTC()
	r := &Recording{
		UniqueID:    NewUniqueID(),
		MeetingID:   meetingID,
		RecordingID: fmt.Sprintf("rec_%s_%s", meetingID, now.Format("20060102_150405")),
		RoomName:    roomName,
		RoomURL:     roomURL,
		Status:      RecordingStatusPending,
		Metadata: Metadata{
			"created_at": now.Format(time.RFC3339),
			"room_name":  roomName,
			"room_url":   roomURL,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewUniqueID returns an opaque identifier of the form rec_<32 hex chars>.
func NewUniqueID() string {
	return UniqueIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate checks if the Recording has valid data.
func (r *Recording) Validate() error {
	if r.UniqueID == "" {
		return ErrEmptyUniqueID
	}
	if r.MeetingID == "" {
		return ErrEmptyMeetingID
	}
	if r.RecordingID == "" {
		return ErrEmptyRecordingID
	}
	if !r.Status.Valid() {
		return ErrInvalidRecordingStatus
	}
	return nil
}

// Valid reports whether s is a known status.
func (s RecordingStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s RecordingStatus) Terminal() bool {
	return s == RecordingStatusDeleted
}

// CanTransition reports whether a recording may move from one status to another.
func CanTransition(from, to RecordingStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses a recording may move to `to` from.
// The result is a copy and safe to modify.
func TransitionSources(to RecordingStatus) []RecordingStatus {
	src := transitions[to]
	out := make([]RecordingStatus, len(src))
	copy(out, src)
	return out
}

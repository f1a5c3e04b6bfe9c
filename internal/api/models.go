package api

import (
	"time"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
)

// CreateRoomRequest defines the payload for creating a room and starting its recording.
type CreateRoomRequest struct {
	// Name is slugged and suffixed with the creation time; defaults to "meeting".
	Name            string `json:"name,omitempty"             validate:"omitempty,max=64"`
	Privacy         string `json:"privacy,omitempty"          validate:"omitempty,oneof=public private"`
	MaxParticipants int    `json:"max_participants,omitempty" validate:"omitempty,gte=1,lte=200"`
}

// StartRecordingRequest defines the payload for recording an existing room.
type StartRecordingRequest struct {
	RoomName string `json:"room_name"            validate:"required,max=128"`
	// MeetingID defaults to the room name.
	MeetingID string `json:"meeting_id,omitempty" validate:"omitempty,max=128"`
}

// RecordingCompleteRequest defines the payload of the internal completion webhook.
type RecordingCompleteRequest struct {
	RecordingID  string `json:"recording_id"            validate:"required,startswith=rec_"`
	RecordingURL string `json:"recording_url,omitempty" validate:"omitempty,url"`
}

// CleanupRequest defines the optional payload for a manual cleanup run.
type CleanupRequest struct {
	DaysOld *int `json:"days_old,omitempty" validate:"omitempty,gte=0"`
}

// RecordingQueuedResponse reports a start_recording task accepted for a room.
type RecordingQueuedResponse struct {
	UniqueID string `json:"unique_id"`
	TaskID   int64  `json:"task_id"`
	RoomName string `json:"room_name"`
	RoomURL  string `json:"room_url"`
}

// CreateRoomResponse is returned by POST /api/rooms.
type CreateRoomResponse struct {
	Room      *domain.Room            `json:"room"`
	Recording RecordingQueuedResponse `json:"recording"`
}

// DispatchResponse reports a process_recording task enqueued by a completion signal.
type DispatchResponse struct {
	Message  string `json:"message"`
	UniqueID string `json:"unique_id,omitempty"`
	TaskID   int64  `json:"task_id,omitempty"`
}

// TaskResponse is the API view of a task, with the payload decoded.
type TaskResponse struct {
	ID          int64           `json:"id"`
	Type        string          `json:"task_type"`
	Status      task.TaskStatus `json:"status"`
	Payload     map[string]any  `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TaskQueuedResponse reports a newly enqueued task.
type TaskQueuedResponse struct {
	TaskID int64  `json:"task_id"`
	Type   string `json:"task_type"`
}

// RetryResponse reports the task created by retrying a failed one.
type RetryResponse struct {
	TaskID    int64 `json:"task_id"`
	NewTaskID int64 `json:"new_task_id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// taskToResponse converts a task into its API view. Undecodable payloads are omitted.
func taskToResponse(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Type:        t.Type,
		Status:      t.Status,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
	var payload map[string]any
	if err := t.Decode(&payload); err == nil {
		resp.Payload = payload
	}
	return resp
}

func tasksToResponse(tasks []*task.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}

func dispatchToResponse(d *recording.Dispatch) DispatchResponse {
	if d == nil {
		return DispatchResponse{Message: "Ignored webhook type"}
	}
	return DispatchResponse{
		Message:  "Recording queued for processing",
		UniqueID: d.UniqueID,
		TaskID:   d.TaskID,
	}
}

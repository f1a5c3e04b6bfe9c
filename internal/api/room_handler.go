package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
)

// RoomHandler creates rooms and queues their recordings.
type RoomHandler struct {
	rooms  RoomService
	queue  recording.Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(rooms RoomService, queue recording.Enqueuer, logger *slog.Logger) *RoomHandler {
	if rooms == nil || queue == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("rooms and queue cannot be nil for RoomHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{
		rooms:  rooms,
		queue:  queue,
		logger: logger.With(slog.String("component", "room_handler")),
		now:    time.Now,
	}
}

// CreateRoom handles POST /api/rooms requests.
// It creates a recording-enabled room and enqueues start_recording for it.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateRoomRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}

	name := fmt.Sprintf("%s-%d", roomSlug(req.Name), h.now().Unix())
	room, err := h.rooms.CreateRoom(r.Context(), domain.RoomOptions{
		Name:            name,
		Privacy:         req.Privacy,
		MaxParticipants: req.MaxParticipants,
		EnableRecording: true,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create room")
		return
	}

	queued, err := h.enqueueStart(r.Context(), room, room.Name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue recording")
		return
	}

	log.Info("room created", slog.String("room_name", room.Name), slog.Int64("task_id", queued.TaskID))
	shared.RespondWithJSON(w, r, http.StatusCreated, CreateRoomResponse{Room: room, Recording: queued})
}

// GetRoom handles GET /api/rooms/{roomName} requests.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "roomName")
	if name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Room name is required")
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get room")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, room)
}

// StartRecording handles POST /api/recordings requests.
// The room must already exist on the remote service.
func (h *RoomHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	var req StartRecordingRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), req.RoomName)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to look up room")
		return
	}

	meetingID := req.MeetingID
	if meetingID == "" {
		meetingID = room.Name
	}
	queued, err := h.enqueueStart(r.Context(), room, meetingID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue recording")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, queued)
}

// enqueueStart queues start_recording with a pre-generated unique ID so
// the caller can poll the recording before the task runs and a retried
// task reuses the same row.
func (h *RoomHandler) enqueueStart(ctx context.Context, room *domain.Room, meetingID string) (RecordingQueuedResponse, error) {
	payload := recording.StartRecordingPayload{
		MeetingID: meetingID,
		RoomURL:   room.URL,
		RoomName:  room.Name,
		UniqueID:  domain.NewUniqueID(),
	}
	id, err := h.queue.Enqueue(ctx, task.TaskTypeStartRecording, payload)
	if err != nil {
		return RecordingQueuedResponse{}, fmt.Errorf("failed to enqueue start for room %s: %w", room.Name, err)
	}
	return RecordingQueuedResponse{
		UniqueID: payload.UniqueID,
		TaskID:   id,
		RoomName: room.Name,
		RoomURL:  room.URL,
	}, nil
}

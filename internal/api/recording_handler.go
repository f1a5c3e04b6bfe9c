package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
)

// RecordingHandler serves the recording registry.
type RecordingHandler struct {
	recordings RecordingReader
	logger     *slog.Logger
}

// NewRecordingHandler creates a new RecordingHandler
func NewRecordingHandler(recordings RecordingReader, logger *slog.Logger) *RecordingHandler {
	if recordings == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("recordings cannot be nil for RecordingHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingHandler{
		recordings: recordings,
		logger:     logger.With(slog.String("component", "recording_handler")),
	}
}

// ListRecordings handles GET /api/recordings[?status=] requests.
func (h *RecordingHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	status := domain.RecordingStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
		return
	}

	recs, err := h.recordings.List(r.Context(), status)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list recordings")
		return
	}
	if recs == nil {
		recs = []*domain.Recording{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, recs)
}

// GetRecording handles GET /api/recordings/{uniqueID} requests.
func (h *RecordingHandler) GetRecording(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	uniqueID, err := getPathUniqueID(r, "uniqueID")
	if err != nil {
		log.Debug("invalid unique id", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return
	}

	rec, err := h.recordings.GetByUniqueID(r.Context(), uniqueID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get recording")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rec)
}

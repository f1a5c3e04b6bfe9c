package api

import (
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/daily"
	"github.com/phrazzld/meetrec/internal/platform/logger"
)

// WebhookHandler receives completion signals.
type WebhookHandler struct {
	trigger  CompletionTrigger
	verifier WebhookVerifier
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. A nil verifier accepts
// unsigned remote service webhooks.
func NewWebhookHandler(trigger CompletionTrigger, verifier WebhookVerifier, logger *slog.Logger) *WebhookHandler {
	if trigger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("trigger cannot be nil for WebhookHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		trigger:  trigger,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "webhook_handler")),
	}
}

// DailyRecording handles POST /api/webhooks/daily-recording requests.
// Events other than recording.completed are acknowledged and ignored.
func (h *WebhookHandler) DailyRecording(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	body, err := shared.ReadBody(r)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read webhook")
		return
	}

	if h.verifier != nil {
		err := h.verifier.Verify(
			r.Header.Get(daily.TimestampHeader),
			body,
			r.Header.Get(daily.SignatureHeader),
		)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	}

	var event domain.WebhookEvent
	if err := sonic.ConfigStd.Unmarshal(body, &event); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	dispatch, err := h.trigger.HandleWebhook(r.Context(), event)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to process webhook")
		return
	}

	log.Info("webhook processed",
		slog.String("type", event.Type),
		slog.String("room_name", event.Data.RoomName))
	shared.RespondWithJSON(w, r, http.StatusOK, dispatchToResponse(dispatch))
}

// RecordingComplete handles POST /api/webhooks/recording-complete requests.
// It queues processing for a recording identified by its unique ID.
func (h *WebhookHandler) RecordingComplete(w http.ResponseWriter, r *http.Request) {
	var req RecordingCompleteRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}

	dispatch, err := h.trigger.HandleCompletion(r.Context(), req.RecordingID, req.RecordingURL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue recording")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, dispatchToResponse(dispatch))
}

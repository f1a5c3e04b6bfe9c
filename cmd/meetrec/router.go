package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/meetrec/internal/api"
	apiMiddleware "github.com/phrazzld/meetrec/internal/api/middleware"
)

// routerDeps are the services the HTTP layer is built from.
type routerDeps struct {
	rooms      api.RoomService
	queue      api.TaskQueue
	recordings api.RecordingReader
	trigger    api.CompletionTrigger
	// verifier is nil when no webhook secret is configured.
	verifier api.WebhookVerifier
	checks   map[string]api.HealthCheck
	logger   *slog.Logger
}

// setupRouter creates the application router with all routes and middleware.
func setupRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(deps.logger))
	r.Use(apiMiddleware.RequestLog)
	r.Use(middleware.Recoverer)

	roomHandler := api.NewRoomHandler(deps.rooms, deps.queue, deps.logger)
	recordingHandler := api.NewRecordingHandler(deps.recordings, deps.logger)
	webhookHandler := api.NewWebhookHandler(deps.trigger, deps.verifier, deps.logger)
	taskHandler := api.NewTaskHandler(deps.queue, deps.logger)
	healthHandler := api.NewHealthHandler(deps.checks, deps.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/rooms", roomHandler.CreateRoom)
		r.Get("/rooms/{roomName}", roomHandler.GetRoom)

		r.Post("/recordings", roomHandler.StartRecording)
		r.Get("/recordings", recordingHandler.ListRecordings)
		r.Get("/recordings/{uniqueID}", recordingHandler.GetRecording)

		r.Post("/webhooks/daily-recording", webhookHandler.DailyRecording)
		r.Post("/webhooks/recording-complete", webhookHandler.RecordingComplete)

		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Post("/tasks/{id}/retry", taskHandler.RetryTask)

		r.Post("/maintenance/cleanup", taskHandler.Cleanup)
	})

	r.Get("/health", healthHandler.Health)

	return r
}

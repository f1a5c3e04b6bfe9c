package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/phrazzld/meetrec/internal/api"
	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRooms struct{}

func (stubRooms) CreateRoom(_ context.Context, opts domain.RoomOptions) (*domain.Room, error) {
	return &domain.Room{Name: opts.Name, URL: "https://example.daily.co/" + opts.Name}, nil
}

func (stubRooms) GetRoom(_ context.Context, name string) (*domain.Room, error) {
	return &domain.Room{Name: name, URL: "https://example.daily.co/" + name}, nil
}

type stubRecordings struct{}

func (stubRecordings) GetByUniqueID(context.Context, string) (*domain.Recording, error) {
	return nil, store.ErrRecordingNotFound
}

func (stubRecordings) List(context.Context, domain.RecordingStatus) ([]*domain.Recording, error) {
	return nil, nil
}

type stubTrigger struct{}

func (stubTrigger) HandleWebhook(context.Context, domain.WebhookEvent) (*recording.Dispatch, error) {
	return nil, nil
}

func (stubTrigger) HandleCompletion(context.Context, string, string) (*recording.Dispatch, error) {
	return nil, store.ErrRecordingNotFound
}

func newTestRouter(t *testing.T, checks map[string]api.HealthCheck) (http.Handler, *task.MockTaskStore) {
	t.Helper()
	ts := task.NewMockTaskStore()
	queue := task.NewQueue(ts, nil, logger.Discard())
	return setupRouter(routerDeps{
		rooms:      stubRooms{},
		queue:      queue,
		recordings: stubRecordings{},
		trigger:    stubTrigger{},
		checks:     checks,
		logger:     logger.Discard(),
	}), ts
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealth(t *testing.T) {
	h, _ := newTestRouter(t, map[string]api.HealthCheck{
		"database": func(context.Context) error { return nil },
	})

	rr := do(h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(shared.TraceIDHeader))

	var resp api.HealthResponse
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestRouterHealthDegraded(t *testing.T) {
	h, _ := newTestRouter(t, map[string]api.HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rr := do(h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterRoutes(t *testing.T) {
	h, ts := newTestRouter(t, nil)

	rr := do(h, http.MethodPost, "/api/maintenance/cleanup", `{"days_old": 3}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = do(h, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var tasks []api.TaskResponse
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, task.TaskTypeCleanupRecordings, tasks[0].Type)

	rr = do(h, http.MethodGet, "/api/tasks/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPost, "/api/recordings", `{"room_name": "standup"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	stored, err := ts.List(context.Background(), task.ListFilter{Type: task.TaskTypeStartRecording})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	rr = do(h, http.MethodGet, "/api/recordings", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	rr = do(h, http.MethodGet, "/api/recordings/rec_0123456789abcdef0123456789abcdef", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(h, http.MethodPost, "/api/webhooks/recording-complete", `{"recording_id": "rec_missing"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(h, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRooms struct {
	mu      sync.Mutex
	created []domain.RoomOptions
	rooms   map[string]*domain.Room
	err     error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: map[string]*domain.Room{}}
}

func (f *fakeRooms) CreateRoom(_ context.Context, opts domain.RoomOptions) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, opts)
	room := &domain.Room{Name: opts.Name, URL: "https://meetrec.daily.co/" + opts.Name}
	f.rooms[opts.Name] = room
	return room, nil
}

func (f *fakeRooms) GetRoom(_ context.Context, name string) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	room, ok := f.rooms[name]
	if !ok {
		return nil, &domain.RemoteServiceError{
			Service: "daily", Operation: "get room", StatusCode: http.StatusNotFound, Body: "not found",
		}
	}
	return room, nil
}

type fakeRecordings struct {
	recs []*domain.Recording
	err  error
}

func (f *fakeRecordings) GetByUniqueID(_ context.Context, uniqueID string) (*domain.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.recs {
		if r.UniqueID == uniqueID {
			return r, nil
		}
	}
	return nil, store.ErrRecordingNotFound
}

func (f *fakeRecordings) List(_ context.Context, status domain.RecordingStatus) ([]*domain.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Recording
	for _, r := range f.recs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTrigger struct {
	events      []domain.WebhookEvent
	completions []string
	dispatch    *recording.Dispatch
	err         error
}

func (f *fakeTrigger) HandleWebhook(_ context.Context, event domain.WebhookEvent) (*recording.Dispatch, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	if event.Type != domain.WebhookRecordingCompleted {
		return nil, nil
	}
	return f.dispatch, nil
}

func (f *fakeTrigger) HandleCompletion(_ context.Context, uniqueID, recordingURL string) (*recording.Dispatch, error) {
	f.completions = append(f.completions, uniqueID+"|"+recordingURL)
	if f.err != nil {
		return nil, f.err
	}
	return &recording.Dispatch{UniqueID: uniqueID, TaskID: 42}, nil
}

// newTestQueue returns a real queue over the in-memory task store.
func newTestQueue() (*task.Queue, *task.MockTaskStore) {
	ts := task.NewMockTaskStore()
	return task.NewQueue(ts, nil, discardLogger()), ts
}

// serve routes one request through a chi router so URL params resolve.
func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.ConfigStd.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

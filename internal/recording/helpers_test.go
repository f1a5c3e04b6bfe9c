package recording

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/migrations"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/platform/sqlite"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/stretchr/testify/require"
)

// newRegistry returns a recording registry on a migrated temp database.
func newRegistry(t *testing.T) store.RecordingStore {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "meetrec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.New(migrations.DriverSQLite, db, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))
	return sqlite.NewRecordingStore(db, logger.Discard())
}

// fakeRemote is a scripted remote recording service.
type fakeRemote struct {
	mu sync.Mutex

	startErr    error
	startID     string
	recording   *domain.RemoteRecording
	getErr      error
	artifact    []byte
	downloadErr error

	started    []string
	downloaded []string
}

func (f *fakeRemote) StartRecording(_ context.Context, roomName, recordingID string, _ domain.RecordingOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, roomName)
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.startID != "" {
		return f.startID, nil
	}
	return recordingID, nil
}

func (f *fakeRemote) GetRecording(_ context.Context, recordingID string) (*domain.RemoteRecording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.recording == nil {
		return &domain.RemoteRecording{ID: recordingID, Status: "in-progress"}, nil
	}
	out := *f.recording
	return &out, nil
}

func (f *fakeRemote) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloaded = append(f.downloaded, url)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.artifact, nil
}

type blob struct {
	data     []byte
	modified time.Time
}

// memBlobs is an in-memory BlobStore that records every write.
type memBlobs struct {
	mu        sync.Mutex
	objects   map[string]blob
	puts      []string
	putErr    map[string]error
	deleteErr map[string]error
	now       func() time.Time
}

func newMemBlobs() *memBlobs {
	return &memBlobs{
		objects:   map[string]blob{},
		putErr:    map[string]error{},
		deleteErr: map[string]error{},
		now:       time.Now,
	}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putErr[key]; err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	m.puts = append(m.puts, key)
	m.objects[key] = blob{data: append([]byte(nil), data...), modified: m.now()}
	return nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobObject
	for k, b := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, domain.BlobObject{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[key]; err != nil {
		return &domain.StorageError{Operation: "delete", Key: key, Err: err}
	}
	delete(m.objects, key)
	return nil
}

// seed stores an object with an explicit modification time.
func (m *memBlobs) seed(key string, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = blob{data: []byte("x"), modified: modified}
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memBlobs) get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key].data
}

func (m *memBlobs) writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type enqueued struct {
	taskType string
	payload  any
}

// captureEnqueuer records enqueued tasks instead of persisting them.
type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (c *captureEnqueuer) Enqueue(_ context.Context, taskType string, payload any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.tasks = append(c.tasks, enqueued{taskType: taskType, payload: payload})
	return int64(len(c.tasks)), nil
}

var errBoom = errors.New("boom")

type pipelineFixture struct {
	pipeline    *Pipeline
	registry    store.RecordingStore
	remote      *fakeRemote
	blobs       *memBlobs
	transcriber *fakeTranscriber
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		registry:    newRegistry(t),
		remote:      &fakeRemote{artifact: []byte("mp4-bytes")},
		blobs:       newMemBlobs(),
		transcriber: &fakeTranscriber{text: "Speaker 1: hello"},
	}
	p, err := NewPipeline(f.registry, f.remote, f.blobs, f.transcriber, logger.Discard())
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func startPayload(meetingID string) StartRecordingPayload {
	return StartRecordingPayload{
		MeetingID: meetingID,
		RoomURL:   "https://example.daily.co/" + meetingID,
	}
}

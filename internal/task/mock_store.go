package task

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/meetrec/internal/store"
)

// MockTaskStore is an in-memory TaskStore for tests. It honours the same
// conditional-transition rules as the SQL stores. The Fn hooks, when set,
// replace the default behaviour of the matching method.
type MockTaskStore struct {
	mutex  sync.Mutex
	tasks  map[int64]*Task
	nextID int64
	now    func() time.Time

	EnqueueFn func(ctx context.Context, taskType string, payload []byte) (int64, error)
	ClaimFn   func(ctx context.Context) (*Task, error)
}

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[int64]*Task),
		now:   time.Now,
	}
}

// SetClock overrides the time source used for timestamps.
func (s *MockTaskStore) SetClock(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
}

// Enqueue implements TaskStore.
func (s *MockTaskStore) Enqueue(ctx context.Context, taskType string, payload []byte) (int64, error) {
	if s.EnqueueFn != nil {
		return s.EnqueueFn(ctx, taskType, payload)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.insertLocked(taskType, payload), nil
}

func (s *MockTaskStore) insertLocked(taskType string, payload []byte) int64 {
	s.nextID++
	s.tasks[s.nextID] = &Task{
		ID:        s.nextID,
		Type:      taskType,
		Payload:   slices.Clone(payload),
		Status:    TaskStatusPending,
		CreatedAt: s.now(),
	}
	return s.nextID
}

// Claim implements TaskStore.
func (s *MockTaskStore) Claim(ctx context.Context) (*Task, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var oldest *Task
	for _, t := range s.tasks {
		if t.Status == TaskStatusPending && (oldest == nil || t.ID < oldest.ID) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, ErrQueueEmpty
	}
	now := s.now()
	oldest.Status = TaskStatusProcessing
	oldest.StartedAt = &now
	return copyTask(oldest), nil
}

// Complete implements TaskStore.
func (s *MockTaskStore) Complete(_ context.Context, id int64) error {
	return s.finish(id, TaskStatusCompleted, "")
}

// Fail implements TaskStore.
func (s *MockTaskStore) Fail(_ context.Context, id int64, errMsg string) error {
	return s.finish(id, TaskStatusFailed, errMsg)
}

func (s *MockTaskStore) finish(id int64, status TaskStatus, errMsg string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: task %d is %s", store.ErrInvalidTransition, id, t.Status)
	}
	now := s.now()
	t.Status = status
	t.CompletedAt = &now
	t.Error = errMsg
	return nil
}

// Get implements TaskStore.
func (s *MockTaskStore) Get(_ context.Context, id int64) (*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(t), nil
}

// List implements TaskStore.
func (s *MockTaskStore) List(_ context.Context, filter ListFilter) ([]*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, copyTask(t))
	}
	slices.SortFunc(out, func(a, b *Task) int { return int(b.ID - a.ID) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FailStale implements TaskStore.
func (s *MockTaskStore) FailStale(_ context.Context, cutoff time.Time, errMsg string, requeue bool) ([]*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]int64, 0)
	for id, t := range s.tasks {
		if t.Status == TaskStatusProcessing && t.StartedAt != nil && t.StartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	now := s.now()
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t := s.tasks[id]
		t.Status = TaskStatusFailed
		t.CompletedAt = &now
		t.Error = errMsg
		out = append(out, copyTask(t))
		if requeue {
			s.insertLocked(t.Type, t.Payload)
		}
	}
	return out, nil
}

func copyTask(t *Task) *Task {
	c := *t
	c.Payload = slices.Clone(t.Payload)
	return &c
}

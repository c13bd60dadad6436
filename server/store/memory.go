package store

import (
	"context"
	"sync"

	"github.com/sammcj/go-a2a-core/a2a"
)

// MemoryStore keeps tasks in a map. Stored values are private copies, so
// callers can never alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*a2a.Task)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t)
}

func (s *MemoryStore) Create(ctx context.Context, task *a2a.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := clone(task)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return ErrExists
	}
	s.tasks[task.ID] = stored
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*a2a.Task) error) (*a2a.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	working, err := clone(current)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	stored, err := clone(working)
	if err != nil {
		return nil, err
	}
	s.tasks[id] = stored
	return working, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Package store defines the task persistence port and its backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sammcj/go-a2a-core/a2a"
)

var (
	// ErrNotFound is returned when no task exists for an id.
	ErrNotFound = errors.New("task not found")
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("task already exists")
	// ErrConflict is returned when a concurrent writer won an optimistic update.
	ErrConflict = errors.New("task was modified concurrently")
)

// Store persists tasks. Implementations must make Update an atomic
// read-modify-write for a single id: fn sees the latest committed state
// and either all of its changes are stored or none are.
type Store interface {
	// Get returns a copy of the task, or ErrNotFound.
	Get(ctx context.Context, id string) (*a2a.Task, error)
	// Create stores a new task, or fails with ErrExists.
	Create(ctx context.Context, task *a2a.Task) error
	// Update applies fn to a copy of the stored task and persists the
	// result unless fn returns an error. It returns the stored copy.
	Update(ctx context.Context, id string, fn func(*a2a.Task) error) (*a2a.Task, error)
	// Delete removes a task. Retention is a policy of the caller.
	Delete(ctx context.Context, id string) error
	// Close releases backend resources.
	Close() error
}

// clone deep-copies a task through its JSON form, which also normalises
// part values the same way every backend stores them.
func clone(t *a2a.Task) (*a2a.Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}
	return decode(data)
}

func decode(data []byte) (*a2a.Task, error) {
	var out a2a.Task
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &out, nil
}

// Package keylock provides mutual exclusion per string key without a
// single global critical section.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Arena hands out one mutex per key. Entries are reference counted and
// released once no goroutine holds or waits on them.
type Arena struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{locks: make(map[string]*entry)}
}

// Lock blocks until key is held by the caller and returns the matching
// unlock function.
func (a *Arena) Lock(key string) (unlock func()) {
	a.mu.Lock()
	e, ok := a.locks[key]
	if !ok {
		e = &entry{}
		a.locks[key] = e
	}
	e.refs++
	a.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			a.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(a.locks, key)
			}
			a.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

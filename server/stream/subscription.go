package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sammcj/go-a2a-core/a2a"
)

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	taskID string
	broker *Broker

	ch      chan a2a.Event
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex // guards sends on ch against close
	closed  bool
	dropped atomic.Bool
}

func newSubscription(taskID string, buffer int, b *Broker) *Subscription {
	return &Subscription{
		taskID: taskID,
		broker: b,
		ch:     make(chan a2a.Event, buffer),
		done:   make(chan struct{}),
	}
}

// Snapshot returns an already-closed subscription pre-loaded with events.
// It is used to answer a subscribe on a task that has already finished.
func Snapshot(taskID string, events ...a2a.Event) *Subscription {
	s := newSubscription(taskID, len(events), nil)
	for _, ev := range events {
		s.ch <- ev
	}
	s.shutdown(false)
	return s
}

// TaskID returns the task the subscription follows.
func (s *Subscription) TaskID() string { return s.taskID }

// Events returns the event channel. It is closed when the task reaches a
// final event, the subscriber is dropped, or Close is called.
func (s *Subscription) Events() <-chan a2a.Event { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped reports whether the subscription was ended for not keeping up.
func (s *Subscription) Dropped() bool { return s.dropped.Load() }

// Close unsubscribes.
func (s *Subscription) Close() {
	if s.broker != nil {
		s.broker.detach(s)
	}
	s.shutdown(false)
}

// deliver enqueues ev, waiting at most grace for room. It returns false
// when the subscriber should be dropped.
func (s *Subscription) deliver(ev a2a.Event, grace time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	select {
	case s.ch <- ev:
		return true
	default:
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Subscription) shutdown(dropped bool) {
	s.once.Do(func() {
		if dropped {
			s.dropped.Store(true)
		}
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

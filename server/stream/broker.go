// Package stream relays task events to live subscribers.
package stream

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/internal/keylock"
)

const (
	// DefaultBuffer is the per-subscriber queue length.
	DefaultBuffer = 16
	// DefaultGraceTimeout is how long Publish waits on a full queue before
	// dropping the subscriber.
	DefaultGraceTimeout = 2 * time.Second
)

// Broker maps task ids to ordered subscriber lists and fans events out to
// them. It keeps no history: a subscriber only sees events published after
// it subscribed.
type Broker struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	closed bool

	publishing *keylock.Arena
	buffer     int
	grace      time.Duration
	logger     *zap.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n >= 0 {
			b.buffer = n
		}
	}
}

// WithGraceTimeout sets how long a full subscriber queue is waited on.
func WithGraceTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBroker creates a Broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:       make(map[string][]*Subscription),
		publishing: keylock.New(),
		buffer:     DefaultBuffer,
		grace:      DefaultGraceTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber for taskID.
func (b *Broker) Subscribe(taskID string) *Subscription {
	s := newSubscription(taskID, b.buffer, b)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.shutdown(false)
		return s
	}
	b.subs[taskID] = append(b.subs[taskID], s)
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once.
func (b *Broker) Unsubscribe(s *Subscription) {
	b.detach(s)
	s.shutdown(false)
}

// Publish delivers ev to every current subscriber of its task, in
// subscription order. Events for the same task are delivered in the order
// Publish was called. A subscriber whose queue stays full for the grace
// period is dropped. A final event closes all subscriptions of the task.
func (b *Broker) Publish(ev a2a.Event) {
	taskID := ev.TaskID()
	unlock := b.publishing.Lock(taskID)
	defer unlock()

	b.mu.Lock()
	subs := slices.Clone(b.subs[taskID])
	b.mu.Unlock()

	for _, s := range subs {
		if s.deliver(ev, b.grace) {
			continue
		}
		b.logger.Warn("dropping slow stream subscriber",
			zap.String("task_id", taskID),
			zap.Duration("grace", b.grace))
		b.detach(s)
		s.shutdown(true)
	}

	if ev.IsFinal() {
		b.mu.Lock()
		subs = b.subs[taskID]
		delete(b.subs, taskID)
		b.mu.Unlock()
		for _, s := range subs {
			s.shutdown(false)
		}
	}
}

// SubscriberCount returns the number of live subscribers for taskID.
func (b *Broker) SubscriberCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[taskID])
}

// Close closes every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[string][]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.shutdown(false)
		}
	}
}

func (b *Broker) detach(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.taskID]
	for i, candidate := range subs {
		if candidate == s {
			subs = slices.Delete(subs, i, i+1)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, s.taskID)
	} else {
		b.subs[s.taskID] = subs
	}
}

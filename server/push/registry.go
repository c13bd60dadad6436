// Package push stores per-task webhook configuration and delivers task
// events to it with bounded retries.
package push

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/internal/backoff"
)

// Sender performs one webhook call. A nil error means the receiver
// acknowledged the event.
type Sender interface {
	Send(ctx context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error

func (f SenderFunc) Send(ctx context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error {
	return f(ctx, cfg, ev)
}

// DeliveryState is the state of one delivery.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "delivery-failed"
)

// Delivery tracks the attempts to push one event.
type Delivery struct {
	ID            string
	TaskID        string
	Event         a2a.Event
	Config        a2a.PushNotificationConfig
	Attempts      int
	NextAttemptAt time.Time
	State         DeliveryState
	LastError     string
}

// lane delivers the events of one task in FIFO order.
type lane struct {
	queue []*Delivery
}

const (
	defaultHistory      = 64
	defaultHistoryTasks = 1024
)

// Registry holds one push configuration per task and drives deliveries.
// Notify never blocks on the network: deliveries run on per-task lanes with
// their own backoff timers.
type Registry struct {
	mu       sync.Mutex
	configs  map[string]a2a.PushNotificationConfig
	lanes    map[string]*lane
	history  map[string][]*Delivery
	histKeys []string // tasks in history, oldest first
	closed   bool
	maxHist  int
	maxTasks int
	sender   Sender
	policy   backoff.Policy
	timeout  time.Duration
	logger   *zap.Logger
	onFailed func(Delivery)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the retry policy.
func WithPolicy(p backoff.Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithAttemptTimeout bounds a single send.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFailureHook is called once for every delivery that ends in
// DeliveryFailed.
func WithFailureHook(fn func(Delivery)) Option {
	return func(r *Registry) { r.onFailed = fn }
}

// WithHistory sets how many deliveries per task are kept for inspection.
func WithHistory(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxHist = n
		}
	}
}

// WithHistoryTasks bounds how many tasks keep delivery history. The task
// whose history was started first is evicted.
func WithHistoryTasks(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxTasks = n
		}
	}
}

// NewRegistry creates a Registry sending through sender.
func NewRegistry(sender Sender, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		configs:  make(map[string]a2a.PushNotificationConfig),
		lanes:    make(map[string]*lane),
		history:  make(map[string][]*Delivery),
		maxHist:  defaultHistory,
		maxTasks: defaultHistoryTasks,
		sender:   sender,
		policy:   backoff.DefaultPolicy(),
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set validates and stores cfg for taskID, replacing any previous config.
// The task does not need to exist yet.
func (r *Registry) Set(taskID string, cfg a2a.PushNotificationConfig) error {
	if err := a2a.Validate(&cfg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[taskID] = cfg
	return nil
}

// Get returns the config for taskID.
func (r *Registry) Get(taskID string) (a2a.PushNotificationConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[taskID]
	return cfg, ok
}

// Remove deletes the config and delivery history for taskID. Queued
// deliveries still run.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, taskID)
	r.dropHistory(taskID)
}

// Notify queues ev for delivery if its task has a config. The config is
// captured at this point.
func (r *Registry) Notify(ev a2a.Event) {
	taskID := ev.TaskID()

	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[taskID]
	if !ok || r.closed {
		return
	}

	d := &Delivery{
		ID:            uuid.NewString(),
		TaskID:        taskID,
		Event:         ev,
		Config:        cfg,
		NextAttemptAt: time.Now(),
		State:         DeliveryPending,
	}
	hist, seen := r.history[taskID]
	if !seen {
		r.histKeys = append(r.histKeys, taskID)
		if len(r.histKeys) > r.maxTasks {
			r.dropHistory(r.histKeys[0])
		}
	}
	hist = append(hist, d)
	if len(hist) > r.maxHist {
		hist = hist[len(hist)-r.maxHist:]
	}
	r.history[taskID] = hist

	l, running := r.lanes[taskID]
	if !running {
		l = &lane{}
		r.lanes[taskID] = l
		r.wg.Add(1)
		go r.run(taskID, l)
	}
	l.queue = append(l.queue, d)
}

// dropHistory forgets the deliveries of taskID. r.mu must be held.
func (r *Registry) dropHistory(taskID string) {
	if _, ok := r.history[taskID]; !ok {
		return
	}
	delete(r.history, taskID)
	r.histKeys = slices.DeleteFunc(r.histKeys, func(k string) bool { return k == taskID })
}

// Deliveries returns snapshots of the recent deliveries for taskID, oldest first.
func (r *Registry) Deliveries(taskID string) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, 0, len(r.history[taskID]))
	for _, d := range r.history[taskID] {
		out = append(out, *d)
	}
	return out
}

// Close stops all lanes. Deliveries still pending are abandoned. It waits
// for the lanes to exit or ctx to end.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) run(taskID string, l *lane) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(l.queue) == 0 {
			delete(r.lanes, taskID)
			r.mu.Unlock()
			return
		}
		d := l.queue[0]
		r.mu.Unlock()

		if !r.drive(d) {
			return
		}

		r.mu.Lock()
		l.queue = l.queue[1:]
		r.mu.Unlock()
	}
}

// drive runs one delivery until it leaves the pending state. It returns
// false if the registry was closed first.
func (r *Registry) drive(d *Delivery) bool {
	logger := r.logger.With(zap.String("task_id", d.TaskID), zap.String("delivery_id", d.ID))
	for {
		r.mu.Lock()
		wait := time.Until(d.NextAttemptAt)
		r.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-r.ctx.Done():
				timer.Stop()
				return false
			}
		}
		if r.ctx.Err() != nil {
			return false
		}

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		err := r.sender.Send(ctx, d.Config, d.Event)
		cancel()

		r.mu.Lock()
		d.Attempts++
		switch {
		case err == nil:
			d.State = DeliveryDelivered
			d.LastError = ""
		case d.Attempts >= r.policy.Attempts():
			d.State = DeliveryFailed
			d.LastError = err.Error()
		default:
			d.LastError = err.Error()
			d.NextAttemptAt = time.Now().Add(r.policy.Delay(d.Attempts - 1))
		}
		snapshot := *d
		r.mu.Unlock()

		switch snapshot.State {
		case DeliveryDelivered:
			logger.Debug("push notification delivered", zap.Int("attempts", snapshot.Attempts))
			return true
		case DeliveryFailed:
			logger.Warn("push notification delivery failed",
				zap.Int("attempts", snapshot.Attempts),
				zap.String("url", snapshot.Config.URL),
				zap.String("error", snapshot.LastError))
			if r.onFailed != nil {
				r.onFailed(snapshot)
			}
			return true
		default:
			logger.Debug("push notification attempt failed, retrying",
				zap.Int("attempt", snapshot.Attempts),
				zap.Time("next_attempt_at", snapshot.NextAttemptAt),
				zap.Error(err))
		}
	}
}

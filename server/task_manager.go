package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/internal/keylock"
	"github.com/sammcj/go-a2a-core/pkg/task"
	"github.com/sammcj/go-a2a-core/server/push"
	"github.com/sammcj/go-a2a-core/server/store"
	"github.com/sammcj/go-a2a-core/server/stream"
)

const tracerName = "github.com/sammcj/go-a2a-core/server"

// TaskManager defines the interface for task management operations.
type TaskManager interface {
	// Handles non-streaming task send/resume.
	OnSendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error)

	// Handles streaming task send/resume. The subscription is attached
	// before the task is created, so it sees every event of the request.
	OnSendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (*stream.Subscription, error)

	// Handles task retrieval.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// Handles task cancellation.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// Handles setting push notification config.
	OnSetTaskPushNotification(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)

	// Handles getting push notification config.
	OnGetTaskPushNotification(ctx context.Context, params *a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error)

	// Handles resubscribing to a task stream.
	OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*stream.Subscription, error)
}

// ProcessorConfig holds the collaborators of a Processor. Only Handler is
// required; the rest default to in-memory implementations.
type ProcessorConfig struct {
	Handler  task.Handler
	Store    store.Store
	Broker   *stream.Broker
	Registry *push.Registry
	Card     *a2a.AgentCard
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

// Processor is the TaskManager implementation. All mutations of one task,
// together with the events they produce, are serialized on a per-task lock.
type Processor struct {
	store    store.Store
	broker   *stream.Broker
	registry *push.Registry
	handler  task.Handler
	card     *a2a.AgentCard
	logger   *zap.Logger
	tracer   trace.Tracer
	locks    *keylock.Arena
	now      func() time.Time

	mu      sync.Mutex
	running map[string]*round

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ TaskManager = (*Processor)(nil)

// round is one handler invocation for a task. It ends at the first final
// status, when the update channel closes, or on cancel. Updates arriving
// after that are discarded.
type round struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (r *round) finish() {
	r.once.Do(func() {
		r.cancel()
		close(r.done)
	})
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Handler == nil {
		return nil, errors.New("task handler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Broker == nil {
		cfg.Broker = stream.NewBroker(stream.WithLogger(cfg.Logger))
	}
	if cfg.Registry == nil {
		cfg.Registry = push.NewRegistry(push.NewHTTPSender(nil), push.WithLogger(cfg.Logger))
	}
	if cfg.Card == nil {
		cfg.Card = &a2a.AgentCard{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.GetTracerProvider().Tracer(tracerName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:    cfg.Store,
		broker:   cfg.Broker,
		registry: cfg.Registry,
		handler:  cfg.Handler,
		card:     cfg.Card,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC() },
		running:  make(map[string]*round),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Card returns the agent card the processor gates capabilities on.
func (p *Processor) Card() *a2a.AgentCard { return p.card }

// Active reports whether a handler round is in flight for taskID.
func (p *Processor) Active(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[taskID]
	return ok
}

// OnSendTask implements TaskManager.OnSendTask.
func (p *Processor) OnSendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.OnSendTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	r, err := p.start(ctx, params)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		p.logger.Debug("caller stopped waiting for task", zap.String("task_id", params.ID))
	}
	return p.snapshot(context.WithoutCancel(ctx), params.ID, params.HistoryLength)
}

// OnSendTaskSubscribe implements TaskManager.OnSendTaskSubscribe.
func (p *Processor) OnSendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (*stream.Subscription, error) {
	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.OnSendTaskSubscribe",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !p.card.Capabilities.Streaming {
		err := a2a.ErrUnsupportedOperation("streaming")
		recordError(span, err)
		return nil, err
	}

	sub := p.broker.Subscribe(params.ID)
	if _, err := p.start(ctx, params); err != nil {
		sub.Close()
		recordError(span, err)
		return nil, err
	}
	return sub, nil
}

// OnGetTask implements TaskManager.OnGetTask.
func (p *Processor) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.OnGetTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	t, err := p.snapshot(ctx, params.ID, params.HistoryLength)
	if err != nil {
		recordError(span, err)
	}
	return t, err
}

// OnCancelTask implements TaskManager.OnCancelTask.
func (p *Processor) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.OnCancelTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	unlock := p.locks.Lock(params.ID)
	defer unlock()

	current, err := p.store.Get(ctx, params.ID)
	if err != nil {
		err = storeError(params.ID, err)
		recordError(span, err)
		return nil, err
	}

	switch current.Status.State {
	case a2a.TaskStateCanceled:
		return current, nil
	case a2a.TaskStateCompleted, a2a.TaskStateFailed:
		err := a2a.ErrInvalidStateTransition(params.ID, current.Status.State, a2a.TaskStateCanceled)
		recordError(span, err)
		return nil, err
	}

	updated, err := p.store.Update(ctx, params.ID, func(t *a2a.Task) error {
		return t.Transition(a2a.TaskStateCanceled, nil, p.now())
	})
	if err != nil {
		err = storeError(params.ID, err)
		recordError(span, err)
		return nil, err
	}

	if r := p.takeRound(params.ID, nil); r != nil {
		r.finish()
	}
	p.emit(&a2a.TaskStatusUpdateEvent{ID: params.ID, Status: updated.Status, Final: true})
	p.logger.Info("task canceled", zap.String("task_id", params.ID))
	return updated, nil
}

// OnSetTaskPushNotification implements TaskManager.OnSetTaskPushNotification.
func (p *Processor) OnSetTaskPushNotification(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	_, span := p.tracer.Start(ctx, "a2a.task_manager.OnSetTaskPushNotification",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !p.card.Capabilities.PushNotifications {
		err := a2a.ErrPushNotificationNotSupported()
		recordError(span, err)
		return nil, err
	}
	if err := p.registry.Set(params.ID, params.PushNotificationConfig); err != nil {
		recordError(span, err)
		return nil, err
	}

	cfg, _ := p.registry.Get(params.ID)
	return &a2a.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: cfg}, nil
}

// OnGetTaskPushNotification implements TaskManager.OnGetTaskPushNotification.
func (p *Processor) OnGetTaskPushNotification(ctx context.Context, params *a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error) {
	_, span := p.tracer.Start(ctx, "a2a.task_manager.OnGetTaskPushNotification",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !p.card.Capabilities.PushNotifications {
		err := a2a.ErrPushNotificationNotSupported()
		recordError(span, err)
		return nil, err
	}
	cfg, ok := p.registry.Get(params.ID)
	if !ok {
		err := a2a.NewErrorf(a2a.CodeTaskNotFound, "No push notification config for task: %s", params.ID)
		recordError(span, err)
		return nil, err
	}
	return &a2a.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: cfg}, nil
}

// OnResubscribeToTask implements TaskManager.OnResubscribeToTask.
func (p *Processor) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*stream.Subscription, error) {
	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.OnResubscribeToTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !p.card.Capabilities.Streaming {
		err := a2a.ErrUnsupportedOperation("streaming")
		recordError(span, err)
		return nil, err
	}

	// The lock orders the subscribe against in-flight emissions, so the
	// subscriber either sees the final event live or gets the snapshot.
	unlock := p.locks.Lock(params.ID)
	defer unlock()

	current, err := p.store.Get(ctx, params.ID)
	if err != nil {
		err = storeError(params.ID, err)
		recordError(span, err)
		return nil, err
	}
	if current.Status.State.IsTerminal() {
		return stream.Snapshot(params.ID, &a2a.TaskStatusUpdateEvent{
			ID:     params.ID,
			Status: current.Status,
			Final:  true,
		}), nil
	}
	return p.broker.Subscribe(params.ID), nil
}

// Close cancels every running handler and waits for their rounds to drain
// or ctx to end.
func (p *Processor) Close(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start creates or continues the task and launches a handler round. The
// returned round is done when the request has settled.
func (p *Processor) start(ctx context.Context, params *a2a.TaskSendParams) (*round, error) {
	if params.PushNotification != nil {
		if !p.card.Capabilities.PushNotifications {
			return nil, a2a.ErrPushNotificationNotSupported()
		}
		if err := a2a.Validate(params.PushNotification); err != nil {
			return nil, err
		}
	}
	if err := p.baseCtx.Err(); err != nil {
		return nil, a2a.WrapError(err, a2a.CodeInternalError, "Task processor is shut down")
	}

	id := params.ID
	unlock := p.locks.Lock(id)
	defer unlock()

	if p.Active(id) {
		return nil, a2a.NewErrorf(a2a.CodeInvalidStateTransition, "Task %s is already being processed", id)
	}

	logger := p.logger.With(zap.String("task_id", id))
	// Each path commits the inbound message and the Working transition in a
	// single store write, so a failed write leaves the task untouched.
	var working *a2a.Task
	existing, err := p.store.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		now := p.now()
		submitted := a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: now}
		created := &a2a.Task{
			ID:        id,
			SessionID: params.SessionID,
			Status:    submitted,
			History:   []a2a.Message{params.Message},
			Metadata:  params.Metadata,
		}
		if err := created.Transition(a2a.TaskStateWorking, nil, now); err != nil {
			return nil, err
		}
		if err := p.store.Create(ctx, created); err != nil {
			return nil, storeError(id, err)
		}
		working = created
		p.emit(&a2a.TaskStatusUpdateEvent{ID: id, Status: submitted})
		logger.Info("task created")
	case err != nil:
		return nil, storeError(id, err)
	case existing.Status.State.IsTerminal():
		return nil, a2a.ErrInvalidStateTransition(id, existing.Status.State, a2a.TaskStateWorking)
	default:
		working, err = p.store.Update(ctx, id, func(t *a2a.Task) error {
			if err := t.Transition(a2a.TaskStateWorking, nil, p.now()); err != nil {
				return err
			}
			t.History = append(t.History, params.Message)
			return nil
		})
		if err != nil {
			return nil, storeError(id, err)
		}
		logger.Debug("task continued", zap.String("from_state", string(existing.Status.State)))
	}

	if params.PushNotification != nil {
		if err := p.registry.Set(id, *params.PushNotification); err != nil {
			logger.Warn("failed to register push notification config", zap.Error(err))
		}
	}
	p.emit(&a2a.TaskStatusUpdateEvent{ID: id, Status: working.Status})

	runCtx, cancel := context.WithCancel(p.baseCtx)
	r := &round{cancel: cancel, done: make(chan struct{})}
	p.mu.Lock()
	p.running[id] = r
	p.mu.Unlock()

	taskCtx := task.Context{
		TaskID:      id,
		SessionID:   working.SessionID,
		UserMessage: params.Message,
		History:     working.History,
		Metadata:    params.Metadata,
	}
	p.wg.Add(1)
	go p.run(runCtx, r, taskCtx)
	return r, nil
}

// run invokes the handler and folds its updates into the task.
func (p *Processor) run(ctx context.Context, r *round, taskCtx task.Context) {
	defer p.wg.Done()
	id := taskCtx.TaskID
	logger := p.logger.With(zap.String("task_id", id))

	ctx, span := p.tracer.Start(ctx, "a2a.task_manager.run",
		trace.WithAttributes(attribute.String("a2a.task_id", id)))
	defer span.End()

	updates, err := p.handler(ctx, taskCtx)
	if err != nil {
		recordError(span, err)
		logger.Warn("task handler failed to start", zap.Error(err))
		msg := a2a.NewTextMessage(a2a.RoleAgent, fmt.Sprintf("Task failed: %v", err))
		p.settle(ctx, r, id, a2a.TaskStateFailed, &msg)
		return
	}

	for update := range updates {
		p.apply(ctx, r, id, update)
	}
	if p.baseCtx.Err() != nil {
		msg := a2a.NewTextMessage(a2a.RoleAgent, "Task interrupted by server shutdown")
		p.settle(ctx, r, id, a2a.TaskStateFailed, &msg)
		return
	}
	p.settle(ctx, r, id, a2a.TaskStateCompleted, nil)
}

// apply folds one handler update into the task if r is still the task's
// current round.
func (p *Processor) apply(ctx context.Context, r *round, id string, update task.YieldUpdate) {
	unlock := p.locks.Lock(id)
	defer unlock()

	if !p.isCurrent(id, r) {
		return
	}
	logger := p.logger.With(zap.String("task_id", id))
	storeCtx := context.WithoutCancel(ctx)

	switch u := update.(type) {
	case task.StatusUpdate:
		updated, err := p.store.Update(storeCtx, id, func(t *a2a.Task) error {
			if err := t.Transition(u.State, u.Message, p.now()); err != nil {
				return err
			}
			if u.Message != nil {
				t.History = append(t.History, *u.Message)
			}
			return nil
		})
		if err != nil {
			logger.Warn("dropping rejected status update", zap.String("state", string(u.State)), zap.Error(err))
			return
		}
		final := a2a.IsFinalStatus(u.State)
		if final {
			p.takeRound(id, r)
		}
		p.emit(&a2a.TaskStatusUpdateEvent{ID: id, Status: updated.Status, Final: final})
		if final {
			r.finish()
			logger.Info("task round finished", zap.String("state", string(u.State)))
		}

	case task.ArtifactUpdate:
		if _, err := p.store.Update(storeCtx, id, func(t *a2a.Task) error {
			return t.ApplyArtifact(u.Artifact)
		}); err != nil {
			logger.Warn("dropping rejected artifact update", zap.Int("index", u.Artifact.Index), zap.Error(err))
			return
		}
		p.emit(&a2a.TaskArtifactUpdateEvent{ID: id, Artifact: u.Artifact})

	default:
		logger.Warn("dropping unknown handler update", zap.String("type", fmt.Sprintf("%T", update)))
	}
}

// settle ends round r. If r is still current and the task is working, the
// task moves to state.
func (p *Processor) settle(ctx context.Context, r *round, id string, state a2a.TaskState, msg *a2a.Message) {
	defer r.finish()

	unlock := p.locks.Lock(id)
	defer unlock()

	if p.takeRound(id, r) == nil {
		return
	}
	updated, err := p.store.Update(context.WithoutCancel(ctx), id, func(t *a2a.Task) error {
		if t.Status.State != a2a.TaskStateWorking {
			return errNoChange
		}
		if err := t.Transition(state, msg, p.now()); err != nil {
			return err
		}
		if msg != nil {
			t.History = append(t.History, *msg)
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		return
	case err != nil:
		p.logger.Error("failed to settle task", zap.String("task_id", id), zap.Error(err))
		return
	}
	p.emit(&a2a.TaskStatusUpdateEvent{ID: id, Status: updated.Status, Final: true})
	p.logger.Info("task round finished", zap.String("task_id", id), zap.String("state", string(state)))
}

var errNoChange = errors.New("no change")

// emit publishes ev to live subscribers and queues it for push delivery.
// Callers hold the task lock.
func (p *Processor) emit(ev a2a.Event) {
	p.broker.Publish(ev)
	p.registry.Notify(ev)
}

func (p *Processor) isCurrent(id string, r *round) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running[id] == r
}

// takeRound removes and returns the current round of id. With a non-nil
// want it only does so when want is current.
func (p *Processor) takeRound(id string, want *round) *round {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.running[id]
	if !ok || (want != nil && r != want) {
		return nil
	}
	delete(p.running, id)
	return r
}

func (p *Processor) snapshot(ctx context.Context, id string, historyLength *int) (*a2a.Task, error) {
	t, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(id, err)
	}
	return t.WithHistoryLimit(historyLength), nil
}

// storeError maps store failures to protocol errors.
func storeError(id string, err error) error {
	var a2aErr *a2a.Error
	switch {
	case errors.As(err, &a2aErr):
		return a2aErr
	case errors.Is(err, store.ErrNotFound):
		return a2a.ErrTaskNotFound(id)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrExists):
		return a2a.WrapErrorf(err, a2a.CodeInvalidStateTransition, "Task %s was modified concurrently", id)
	default:
		return a2a.ErrInternalError(err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

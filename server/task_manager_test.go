package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/internal/backoff"
	"github.com/sammcj/go-a2a-core/pkg/task"
	"github.com/sammcj/go-a2a-core/server/push"
	"github.com/sammcj/go-a2a-core/server/store"
	"github.com/sammcj/go-a2a-core/server/stream"
)

func fullCard() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:    "Test Agent",
		URL:     "http://localhost/a2a",
		Version: "1.0.0",
		Capabilities: a2a.AgentCapabilities{
			Streaming:         true,
			PushNotifications: true,
		},
	}
}

func newTestProcessor(t *testing.T, handler task.Handler, configure ...func(*ProcessorConfig)) *Processor {
	t.Helper()
	cfg := ProcessorConfig{Handler: handler, Card: fullCard()}
	for _, fn := range configure {
		fn(&cfg)
	}
	p, err := NewProcessor(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, p.Close(ctx))
	})
	return p
}

func sendParams(id, text string) *a2a.TaskSendParams {
	return &a2a.TaskSendParams{ID: id, Message: a2a.NewTextMessage(a2a.RoleUser, text)}
}

// scripted yields the given updates in order and returns.
func scripted(updates ...task.YieldUpdate) task.Handler {
	return task.HandlerFunc(func(ctx context.Context, _ task.Context, yield func(task.YieldUpdate) bool) error {
		for _, u := range updates {
			if !yield(u) {
				return nil
			}
		}
		return nil
	})
}

// blocking signals started and waits until its context is cancelled.
func blocking(started chan<- string, stopped chan<- string) task.Handler {
	return task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, _ func(task.YieldUpdate) bool) error {
		started <- taskCtx.TaskID
		<-ctx.Done()
		if stopped != nil {
			stopped <- taskCtx.TaskID
		}
		return nil
	})
}

func textArtifact(index int, text string) task.ArtifactUpdate {
	return task.ArtifactUpdate{Artifact: a2a.Artifact{Index: index, Parts: a2a.Parts{a2a.TextPart{Text: text}}}}
}

func agentStatus(state a2a.TaskState, text string) task.StatusUpdate {
	msg := a2a.NewTextMessage(a2a.RoleAgent, text)
	return task.StatusUpdate{State: state, Message: &msg}
}

func drain(t *testing.T, sub *stream.Subscription) []a2a.Event {
	t.Helper()
	var out []a2a.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not end")
			return out
		}
	}
}

func states(events []a2a.Event) []a2a.TaskState {
	var out []a2a.TaskState
	for _, ev := range events {
		if s, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			out = append(out, s.Status.State)
		}
	}
	return out
}

func codeOf(err error) int {
	return a2a.AsError(err).Code
}

func TestNewProcessorRequiresHandler(t *testing.T) {
	_, err := NewProcessor(ProcessorConfig{})
	assert.Error(t, err)
}

func TestSendTaskCompletesWhenHandlerReturns(t *testing.T) {
	p := newTestProcessor(t, scripted(textArtifact(0, "hello")))

	got, err := p.OnSendTask(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)

	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "hello", got.Artifacts[0].Parts.Text())
	require.Len(t, got.History, 1)
	assert.Equal(t, a2a.RoleUser, got.History[0].Role)
	assert.False(t, p.Active("t1"))
}

func TestSendTaskRecordsAgentMessagesAndTrimsHistory(t *testing.T) {
	p := newTestProcessor(t, scripted(
		agentStatus(a2a.TaskStateWorking, "thinking"),
		agentStatus(a2a.TaskStateCompleted, "done"),
	))

	got, err := p.OnSendTask(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.NotNil(t, got.Status.Message)
	assert.Equal(t, "done", got.Status.Message.Parts.Text())
	require.Len(t, got.History, 3)

	one := 1
	trimmed, err := p.OnGetTask(context.Background(), &a2a.TaskQueryParams{ID: "t1", HistoryLength: &one})
	require.NoError(t, err)
	require.Len(t, trimmed.History, 1)
	assert.Equal(t, "done", trimmed.History[0].Parts.Text())
}

func TestSendTaskMultiTurn(t *testing.T) {
	handler := task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, yield func(task.YieldUpdate) bool) error {
		if taskCtx.UserMessage.Parts.Text() == "input" {
			yield(agentStatus(a2a.TaskStateInputRequired, "need more"))
			return nil
		}
		yield(textArtifact(0, fmt.Sprintf("turns=%d", len(taskCtx.History))))
		return nil
	})
	p := newTestProcessor(t, handler)
	ctx := context.Background()

	first, err := p.OnSendTask(ctx, sendParams("t1", "input"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateInputRequired, first.Status.State)

	second, err := p.OnSendTask(ctx, sendParams("t1", "more"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, second.Status.State)
	require.Len(t, second.History, 3)
	assert.Equal(t, "turns=3", second.Artifacts[0].Parts.Text())
}

func TestSendToTerminalTaskIsRejected(t *testing.T) {
	p := newTestProcessor(t, scripted())
	ctx := context.Background()

	_, err := p.OnSendTask(ctx, sendParams("t1", "hi"))
	require.NoError(t, err)

	_, err = p.OnSendTask(ctx, sendParams("t1", "again"))
	require.Error(t, err)
	assert.Equal(t, a2a.CodeInvalidStateTransition, codeOf(err))
}

func TestSendWhileRunningIsRejected(t *testing.T) {
	started := make(chan string, 1)
	p := newTestProcessor(t, blocking(started, nil))
	ctx := context.Background()

	sub, err := p.OnSendTaskSubscribe(ctx, sendParams("t1", "hi"))
	require.NoError(t, err)
	defer sub.Close()
	<-started

	_, err = p.OnSendTask(ctx, sendParams("t1", "again"))
	require.Error(t, err)
	assert.Equal(t, a2a.CodeInvalidStateTransition, codeOf(err))
	assert.Contains(t, a2a.AsError(err).Message, "already being processed")
	assert.True(t, p.Active("t1"))
}

func TestConcurrentSendsToOneTaskStartOneRound(t *testing.T) {
	started := make(chan string, 16)
	p := newTestProcessor(t, blocking(started, nil))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := p.OnSendTaskSubscribe(context.Background(), sendParams("t1", "hi"))
			if err == nil {
				ok.Add(1)
				sub.Close()
				return
			}
			assert.Equal(t, a2a.CodeInvalidStateTransition, codeOf(err))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler did not start")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, started)
}

func TestSendSubscribeStreamsEveryEvent(t *testing.T) {
	p := newTestProcessor(t, scripted(
		textArtifact(0, "a"),
		task.ArtifactUpdate{Artifact: a2a.Artifact{Index: 0, Append: true, LastChunk: true, Parts: a2a.Parts{a2a.TextPart{Text: "b"}}}},
		agentStatus(a2a.TaskStateCompleted, "done"),
	))

	sub, err := p.OnSendTaskSubscribe(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	events := drain(t, sub)

	require.Len(t, events, 5)
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateCompleted}, states(events))
	assert.Equal(t, "taskArtifactUpdate", events[2].EventType())
	assert.Equal(t, "taskArtifactUpdate", events[3].EventType())
	assert.True(t, events[4].IsFinal())
	for _, ev := range events[:4] {
		assert.False(t, ev.IsFinal())
	}

	got, err := p.OnGetTask(context.Background(), &a2a.TaskQueryParams{ID: "t1"})
	require.NoError(t, err)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "a\nb", got.Artifacts[0].Parts.Text())
	assert.True(t, got.Artifacts[0].LastChunk)
}

func TestRejectedUpdatesAreDropped(t *testing.T) {
	p := newTestProcessor(t, scripted(
		task.StatusUpdate{State: a2a.TaskStateSubmitted},
		task.ArtifactUpdate{Artifact: a2a.Artifact{Index: 3, Append: true}},
		textArtifact(0, "kept"),
	))

	got, err := p.OnSendTask(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "kept", got.Artifacts[0].Parts.Text())
}

func TestUpdatesAfterFinalStatusAreDiscarded(t *testing.T) {
	p := newTestProcessor(t, scripted(
		agentStatus(a2a.TaskStateFailed, "boom"),
		textArtifact(0, "late"),
		task.StatusUpdate{State: a2a.TaskStateWorking},
	))

	sub, err := p.OnSendTaskSubscribe(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	events := drain(t, sub)
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateFailed}, states(events))

	require.Eventually(t, func() bool { return !p.Active("t1") }, time.Second, 5*time.Millisecond)
	got, err := p.OnGetTask(context.Background(), &a2a.TaskQueryParams{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, got.Status.State)
	assert.Empty(t, got.Artifacts)
}

func TestHandlerStartErrorFailsTask(t *testing.T) {
	p := newTestProcessor(t, func(context.Context, task.Context) (<-chan task.YieldUpdate, error) {
		return nil, errors.New("model unavailable")
	})

	got, err := p.OnSendTask(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, got.Status.State)
	require.NotNil(t, got.Status.Message)
	assert.Contains(t, got.Status.Message.Parts.Text(), "model unavailable")
}

// faultyStore fails writes while its switches are on.
type faultyStore struct {
	store.Store
	failCreate atomic.Bool
	failUpdate atomic.Bool
}

func (s *faultyStore) Create(ctx context.Context, t *a2a.Task) error {
	if s.failCreate.Load() {
		return errors.New("disk full")
	}
	return s.Store.Create(ctx, t)
}

func (s *faultyStore) Update(ctx context.Context, id string, fn func(*a2a.Task) error) (*a2a.Task, error) {
	if s.failUpdate.Load() {
		return nil, errors.New("disk full")
	}
	return s.Store.Update(ctx, id, fn)
}

func TestFailedContinueLeavesTaskUnchanged(t *testing.T) {
	handler := task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, yield func(task.YieldUpdate) bool) error {
		if taskCtx.UserMessage.Parts.Text() == "input" {
			yield(agentStatus(a2a.TaskStateInputRequired, "need more"))
		}
		return nil
	})
	s := &faultyStore{Store: store.NewMemoryStore()}
	p := newTestProcessor(t, handler, func(cfg *ProcessorConfig) { cfg.Store = s })
	ctx := context.Background()

	before, err := p.OnSendTask(ctx, sendParams("t1", "input"))
	require.NoError(t, err)
	require.Equal(t, a2a.TaskStateInputRequired, before.Status.State)

	s.failUpdate.Store(true)
	_, err = p.OnSendTask(ctx, sendParams("t1", "more"))
	require.Error(t, err)
	assert.Equal(t, a2a.CodeInternalError, codeOf(err))

	after, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateInputRequired, after.Status.State)
	assert.Len(t, after.History, len(before.History))
	assert.False(t, p.Active("t1"))

	s.failUpdate.Store(false)
	done, err := p.OnSendTask(ctx, sendParams("t1", "more"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, done.Status.State)
	assert.Len(t, done.History, len(before.History)+1)
}

func TestFailedCreateLeavesNoTask(t *testing.T) {
	s := &faultyStore{Store: store.NewMemoryStore()}
	p := newTestProcessor(t, scripted(), func(cfg *ProcessorConfig) { cfg.Store = s })
	ctx := context.Background()

	s.failCreate.Store(true)
	_, err := p.OnSendTask(ctx, sendParams("t1", "hi"))
	require.Error(t, err)
	assert.Equal(t, a2a.CodeInternalError, codeOf(err))

	_, err = s.Get(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailingPushDoesNotAffectSend(t *testing.T) {
	var calls atomic.Int32
	sender := push.SenderFunc(func(context.Context, a2a.PushNotificationConfig, a2a.Event) error {
		calls.Add(1)
		return errors.New("connection refused")
	})
	failed := make(chan push.Delivery, 8)
	registry := push.NewRegistry(sender,
		push.WithPolicy(backoff.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		push.WithFailureHook(func(d push.Delivery) { failed <- d }))
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	p := newTestProcessor(t, scripted(textArtifact(0, "x")), func(cfg *ProcessorConfig) {
		cfg.Registry = registry
	})

	params := sendParams("t1", "hi")
	params.PushNotification = &a2a.PushNotificationConfig{URL: "https://example.com/hook"}
	got, err := p.OnSendTask(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)

	// Working, the artifact and Completed each exhaust their attempts.
	for range 3 {
		select {
		case d := <-failed:
			assert.Equal(t, push.DeliveryFailed, d.State)
			assert.Equal(t, 3, d.Attempts)
			assert.Contains(t, d.LastError, "connection refused")
		case <-time.After(2 * time.Second):
			t.Fatal("delivery did not fail in time")
		}
	}
	assert.Equal(t, int32(9), calls.Load())

	deliveries := registry.Deliveries("t1")
	require.Len(t, deliveries, 3)
	for _, d := range deliveries {
		assert.Equal(t, push.DeliveryFailed, d.State)
	}
}

func TestCancelTask(t *testing.T) {
	started := make(chan string, 1)
	stopped := make(chan string, 1)
	p := newTestProcessor(t, blocking(started, stopped))
	ctx := context.Background()

	sub, err := p.OnSendTaskSubscribe(ctx, sendParams("t1", "hi"))
	require.NoError(t, err)
	<-started

	got, err := p.OnCancelTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, got.Status.State)

	events := drain(t, sub)
	require.NotEmpty(t, events)
	last := events[len(events)-1].(*a2a.TaskStatusUpdateEvent)
	assert.Equal(t, a2a.TaskStateCanceled, last.Status.State)
	assert.True(t, last.Final)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("handler context was not cancelled")
	}

	again, err := p.OnCancelTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, again.Status.State)

	_, err = p.OnCancelTask(ctx, &a2a.TaskIDParams{ID: "missing"})
	assert.Equal(t, a2a.CodeTaskNotFound, codeOf(err))

	// The handler's return after cancel must not complete the task.
	require.Eventually(t, func() bool { return !p.Active("t1") }, time.Second, 5*time.Millisecond)
	final, err := p.OnGetTask(ctx, &a2a.TaskQueryParams{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, final.Status.State)
}

func TestCancelCompletedTaskIsRejected(t *testing.T) {
	p := newTestProcessor(t, scripted())
	ctx := context.Background()

	_, err := p.OnSendTask(ctx, sendParams("t1", "hi"))
	require.NoError(t, err)

	_, err = p.OnCancelTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	assert.Equal(t, a2a.CodeInvalidStateTransition, codeOf(err))
}

func TestGetUnknownTask(t *testing.T) {
	p := newTestProcessor(t, scripted())
	_, err := p.OnGetTask(context.Background(), &a2a.TaskQueryParams{ID: "nope"})
	assert.Equal(t, a2a.CodeTaskNotFound, codeOf(err))
}

func TestResubscribe(t *testing.T) {
	started := make(chan string, 1)
	release := make(chan struct{})
	p := newTestProcessor(t, task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, yield func(task.YieldUpdate) bool) error {
		started <- taskCtx.TaskID
		<-release
		yield(textArtifact(0, "late"))
		return nil
	}))
	ctx := context.Background()

	_, err := p.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	assert.Equal(t, a2a.CodeTaskNotFound, codeOf(err))

	first, err := p.OnSendTaskSubscribe(ctx, sendParams("t1", "hi"))
	require.NoError(t, err)
	first.Close()
	<-started

	live, err := p.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	require.NoError(t, err)
	close(release)

	events := drain(t, live)
	require.Len(t, events, 2, "live subscribers get no replay")
	assert.Equal(t, "taskArtifactUpdate", events[0].EventType())
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateCompleted}, states(events))

	snapshot, err := p.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	require.NoError(t, err)
	events = drain(t, snapshot)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinal())
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateCompleted}, states(events))
}

func TestCapabilityGating(t *testing.T) {
	p := newTestProcessor(t, scripted(), func(cfg *ProcessorConfig) {
		cfg.Card = &a2a.AgentCard{Name: "plain"}
	})
	ctx := context.Background()

	_, err := p.OnSendTaskSubscribe(ctx, sendParams("t1", "hi"))
	assert.Equal(t, a2a.CodeUnsupportedOperation, codeOf(err))

	_, err = p.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	assert.Equal(t, a2a.CodeUnsupportedOperation, codeOf(err))

	_, err = p.OnSetTaskPushNotification(ctx, &a2a.TaskPushNotificationConfig{
		ID:                     "t1",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.com/hook"},
	})
	assert.Equal(t, a2a.CodePushNotificationNotSupported, codeOf(err))

	params := sendParams("t1", "hi")
	params.PushNotification = &a2a.PushNotificationConfig{URL: "https://example.com/hook"}
	_, err = p.OnSendTask(ctx, params)
	assert.Equal(t, a2a.CodePushNotificationNotSupported, codeOf(err))
}

func TestPushNotificationConfig(t *testing.T) {
	p := newTestProcessor(t, scripted())
	ctx := context.Background()

	_, err := p.OnGetTaskPushNotification(ctx, &a2a.TaskIDParams{ID: "t1"})
	assert.Equal(t, a2a.CodeTaskNotFound, codeOf(err))

	_, err = p.OnSetTaskPushNotification(ctx, &a2a.TaskPushNotificationConfig{
		ID:                     "t1",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "not a url"},
	})
	assert.Equal(t, a2a.CodeInvalidParams, codeOf(err))

	set, err := p.OnSetTaskPushNotification(ctx, &a2a.TaskPushNotificationConfig{
		ID:                     "t1",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.com/hook", Token: "tok"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", set.ID)
	assert.Equal(t, "tok", set.PushNotificationConfig.Token)

	got, err := p.OnGetTaskPushNotification(ctx, &a2a.TaskIDParams{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", got.PushNotificationConfig.URL)
}

func TestInlinePushConfigDeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var delivered []a2a.Event
	sender := push.SenderFunc(func(_ context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, ev)
		return nil
	})
	registry := push.NewRegistry(sender, push.WithPolicy(backoff.Policy{MaxAttempts: 1}))
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	p := newTestProcessor(t, scripted(textArtifact(0, "x")), func(cfg *ProcessorConfig) {
		cfg.Registry = registry
	})

	params := sendParams("t1", "hi")
	params.PushNotification = &a2a.PushNotificationConfig{URL: "https://example.com/hook"}
	_, err := p.OnSendTask(context.Background(), params)
	require.NoError(t, err)

	// The config is registered after the task is created, so the first
	// pushed event is Working.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted}, states(delivered))
	assert.True(t, delivered[2].IsFinal())
}

func TestCloseInterruptsRunningHandlers(t *testing.T) {
	started := make(chan string, 1)
	s := store.NewMemoryStore()
	p, err := NewProcessor(ProcessorConfig{Handler: blocking(started, nil), Store: s, Card: fullCard()})
	require.NoError(t, err)

	sub, err := p.OnSendTaskSubscribe(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	defer sub.Close()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, got.Status.State)

	_, err = p.OnSendTask(context.Background(), sendParams("t2", "hi"))
	assert.Equal(t, a2a.CodeInternalError, codeOf(err))
}

func TestProcessorWithGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:processor?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := store.NewGormStore(db, store.WithMaxRetries(100))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	p := newTestProcessor(t, scripted(textArtifact(0, "persisted")), func(cfg *ProcessorConfig) {
		cfg.Store = s
	})

	got, err := p.OnSendTask(context.Background(), sendParams("t1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)

	stored, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, stored.Artifacts, 1)
	assert.Equal(t, "persisted", stored.Artifacts[0].Parts.Text())
}

// Package task provides the contract between the request processor and the
// application code that does a task's actual work.
package task

import (
	"context"

	"github.com/sammcj/go-a2a-core/a2a"
)

// Context contains the context for a task to be processed.
type Context struct {
	TaskID      string         // The ID of the task
	SessionID   string         // Optional session the task belongs to
	UserMessage a2a.Message    // The message that triggered this round
	History     []a2a.Message  // Snapshot of the task history, including UserMessage
	Metadata    map[string]any // Request metadata
}

// YieldUpdate represents an update to a task being processed.
type YieldUpdate interface {
	isTaskYieldUpdate()
}

// StatusUpdate asks for a state change. The processor stamps the time and
// appends Message to the task history when it is set.
type StatusUpdate struct {
	State   a2a.TaskState // The new state of the task
	Message *a2a.Message  // An optional message to include with the update
}

func (StatusUpdate) isTaskYieldUpdate() {}

// ArtifactUpdate delivers an artifact chunk.
type ArtifactUpdate struct {
	Artifact a2a.Artifact
}

func (ArtifactUpdate) isTaskYieldUpdate() {}

// Handler processes a task and returns a channel of updates. Closing the
// channel ends the round; a task still working at that point is completed.
// The context is cancelled when the task is canceled, and the handler
// should stop sending soon after.
type Handler func(ctx context.Context, taskCtx Context) (<-chan YieldUpdate, error)

// HandlerFunc adapts a synchronous function to a Handler. The function
// receives a send callback and the channel is closed when it returns.
func HandlerFunc(fn func(ctx context.Context, taskCtx Context, yield func(YieldUpdate) bool) error) Handler {
	return func(ctx context.Context, taskCtx Context) (<-chan YieldUpdate, error) {
		updates := make(chan YieldUpdate)
		go func() {
			defer close(updates)
			yield := func(u YieldUpdate) bool {
				select {
				case updates <- u:
					return true
				case <-ctx.Done():
					return false
				}
			}
			if err := fn(ctx, taskCtx, yield); err != nil && ctx.Err() == nil {
				msg := a2a.NewTextMessage(a2a.RoleAgent, err.Error())
				yield(StatusUpdate{State: a2a.TaskStateFailed, Message: &msg})
			}
		}()
		return updates, nil
	}
}

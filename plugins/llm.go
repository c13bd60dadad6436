package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/llm"
	"github.com/sammcj/go-a2a-core/pkg/task"
)

// LLM returns a handler that answers with a completion of the task's
// conversation so far.
func LLM(model llm.LLMInterface, systemPrompt string) task.Handler {
	return task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, yield func(task.YieldUpdate) bool) error {
		info := model.GetModelInfo()
		progress := a2a.NewTextMessage(a2a.RoleAgent, fmt.Sprintf("Generating a response with %s", info.Name))
		if !yield(task.StatusUpdate{State: a2a.TaskStateWorking, Message: &progress}) {
			return nil
		}

		var opts []llm.LLMOption
		if systemPrompt != "" {
			opts = append(opts, llm.WithSystemPrompt(systemPrompt))
		}
		response, err := model.Generate(ctx, conversation(taskCtx.History), opts...)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			msg := a2a.NewTextMessage(a2a.RoleAgent, fmt.Sprintf("LLM generation failed: %v", err))
			yield(task.StatusUpdate{State: a2a.TaskStateFailed, Message: &msg})
			return nil
		}

		if !yield(task.ArtifactUpdate{Artifact: a2a.Artifact{
			Name:      "response",
			Parts:     a2a.Parts{a2a.TextPart{Text: response}},
			LastChunk: true,
			Metadata:  map[string]any{"model": info.Name, "provider": info.Provider},
		}}) {
			return nil
		}
		done := a2a.NewTextMessage(a2a.RoleAgent, response)
		yield(task.StatusUpdate{State: a2a.TaskStateCompleted, Message: &done})
		return nil
	})
}

// conversation renders the text of each message as "role: text" lines.
func conversation(history []a2a.Message) string {
	var b strings.Builder
	for _, m := range history {
		text := m.Parts.Text()
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, text)
	}
	return b.String()
}

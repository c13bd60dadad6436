// Package plugins provides ready-made task handlers for the A2A server.
package plugins

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/pkg/task"
)

// InputRequiredTrigger is the message text that makes the echo handler ask
// for more input instead of completing.
const InputRequiredTrigger = "input"

// EchoInput is the input accepted by the echo skill.
type EchoInput struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

// Echo returns a handler that echoes the first text part of the user's
// message as an artifact.
func Echo() task.Handler {
	return task.HandlerFunc(func(ctx context.Context, taskCtx task.Context, yield func(task.YieldUpdate) bool) error {
		text, ok := firstText(taskCtx.UserMessage)
		if !ok {
			return fmt.Errorf("message has no text part to echo")
		}

		if text == InputRequiredTrigger {
			msg := a2a.NewTextMessage(a2a.RoleAgent, "Please provide the text to echo.")
			yield(task.StatusUpdate{State: a2a.TaskStateInputRequired, Message: &msg})
			return nil
		}

		if !yield(task.ArtifactUpdate{Artifact: a2a.Artifact{
			Name:      "echo",
			Parts:     a2a.Parts{a2a.TextPart{Text: text}},
			LastChunk: true,
		}}) {
			return nil
		}
		msg := a2a.NewTextMessage(a2a.RoleAgent, "Echo: "+text)
		yield(task.StatusUpdate{State: a2a.TaskStateCompleted, Message: &msg})
		return nil
	})
}

// EchoSkill describes the echo handler for the agent card.
func EchoSkill() a2a.AgentSkill {
	r := jsonschema.Reflector{DoNotReference: true}
	return a2a.AgentSkill{
		ID:          "echo",
		Name:        "Echo",
		Description: "Echoes back the user's message",
		Tags:        []string{"echo", "test"},
		Examples:    []string{"hello", InputRequiredTrigger},
		InputModes:  []string{"text/plain"},
		OutputModes: []string{"text/plain"},
		InputSchema: r.Reflect(&EchoInput{}),
	}
}

func firstText(m a2a.Message) (string, bool) {
	for _, p := range m.Parts {
		if tp, ok := p.(a2a.TextPart); ok {
			return tp.Text, true
		}
	}
	return "", false
}

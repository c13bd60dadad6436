// Package a2a defines the Agent-to-Agent protocol types: tasks, messages,
// artifacts, agent cards, push notification configuration, events and the
// JSON-RPC envelope that carries them.
package a2a

import (
	"encoding/json"
	"time"
)

// --- Enums / Constants ---

// TaskState represents the state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// --- Core A2A Objects ---

// Task represents an A2A task.
type Task struct {
	ID        string         `json:"id" validate:"required"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"` // Chronological order
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatus represents the status details of a task.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"` // Optional message associated with the status change
	Timestamp time.Time `json:"timestamp"`
}

// Message represents a message within a task's history.
type Message struct {
	Role     Role           `json:"role" validate:"required,oneof=user agent"`
	Parts    Parts          `json:"parts" validate:"required,min=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Artifact represents an output produced while processing a task. Streamed
// artifacts arrive as chunks sharing an Index.
type Artifact struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       Parts          `json:"parts"`
	Index       int            `json:"index" validate:"gte=0"`
	Append      bool           `json:"append,omitempty"`
	LastChunk   bool           `json:"lastChunk,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// --- Agent Card ---

// AgentCard describes an A2A agent. It is produced once at startup and
// served read-only afterwards.
type AgentCard struct {
	Name               string               `json:"name" validate:"required"`
	Description        string               `json:"description,omitempty"`
	URL                string               `json:"url" validate:"required"`
	Provider           *AgentProvider       `json:"provider,omitempty"`
	Version            string               `json:"version" validate:"required"`
	DocumentationURL   string               `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string             `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill         `json:"skills"`
}

// AgentProvider describes the provider of the agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentSkill describes a skill the agent possesses.
type AgentSkill struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
	InputSchema any      `json:"inputSchema,omitempty"`
}

// AgentCapabilities describes the optional protocol features the agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentAuthentication lists the security schemes a caller may use, e.g.
// "bearer", "apiKey" or "oauth2".
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// --- Push Notifications ---

// PushNotificationConfig holds the webhook target for a task's events.
type PushNotificationConfig struct {
	URL            string               `json:"url" validate:"required,url,startswith=http"`
	Token          string               `json:"token,omitempty"`
	Authentication *AgentAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig binds a push configuration to a task id.
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id" validate:"required"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// --- Method Params ---

// TaskSendParams represents the parameters for tasks/send and tasks/sendSubscribe.
type TaskSendParams struct {
	ID               string                  `json:"id" validate:"required"`
	SessionID        string                  `json:"sessionId,omitempty"`
	Message          Message                 `json:"message"`
	PushNotification *PushNotificationConfig `json:"pushNotification,omitempty"`
	HistoryLength    *int                    `json:"historyLength,omitempty" validate:"omitempty,gte=0"`
	Metadata         map[string]any          `json:"metadata,omitempty"`
}

// TaskQueryParams represents the parameters for the tasks/get method.
type TaskQueryParams struct {
	ID            string         `json:"id" validate:"required"`
	HistoryLength *int           `json:"historyLength,omitempty" validate:"omitempty,gte=0"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams represents parameters containing just a task id.
type TaskIDParams struct {
	ID       string         `json:"id" validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// --- Events ---

// Event is a value placed on the streaming and push delivery paths.
type Event interface {
	TaskID() string
	IsFinal() bool
	// EventType is the SSE event name for the event.
	EventType() string
}

// TaskStatusUpdateEvent reports a status change of a task.
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *TaskStatusUpdateEvent) TaskID() string    { return e.ID }
func (e *TaskStatusUpdateEvent) IsFinal() bool     { return e.Final }
func (e *TaskStatusUpdateEvent) EventType() string { return "taskStatusUpdate" }

// TaskArtifactUpdateEvent reports an artifact chunk produced by a task.
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *TaskArtifactUpdateEvent) TaskID() string    { return e.ID }
func (e *TaskArtifactUpdateEvent) IsFinal() bool     { return e.Final }
func (e *TaskArtifactUpdateEvent) EventType() string { return "taskArtifactUpdate" }

// DecodeEvent decodes a JSON event, telling status and artifact updates
// apart by the presence of the "artifact" member.
func DecodeEvent(data []byte) (Event, error) {
	var probe struct {
		Artifact json.RawMessage `json:"artifact"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if len(probe.Artifact) > 0 {
		var ev TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	}
	var ev TaskStatusUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: Parts{TextPart{Text: text}}}
}

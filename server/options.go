package server

import (
	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/pkg/task"
	"github.com/sammcj/go-a2a-core/server/auth"
	"github.com/sammcj/go-a2a-core/server/push"
	"github.com/sammcj/go-a2a-core/server/store"
	"github.com/sammcj/go-a2a-core/server/stream"
)

// Config holds the configuration for the A2A server.
type Config struct {
	ListenAddress string             // Address to listen on (e.g., ":8080")
	A2APathPrefix string             // Path of the JSON-RPC endpoint (e.g., "/a2a")
	AgentCard     *a2a.AgentCard     // The agent card describing this agent
	AgentCardPath string             // Path to serve the agent card (e.g., "/.well-known/agent.json")
	WebSocketPath string             // Path of the WebSocket endpoint; empty disables it
	TaskManager   TaskManager        // Custom task manager; built from TaskHandler when nil
	TaskHandler   task.Handler       // The application-specific task handler logic
	Store         store.Store        // Task store for the built-in processor
	Authenticator auth.Authenticator // Access policy; allows everyone when nil
	APIKeyHeader  string             // Header read for the "apiKey" auth scheme
	PushSender    push.Sender        // Webhook sender; an HTTPSender when nil
	Logger        *zap.Logger

	BrokerOptions   []stream.Option
	RegistryOptions []push.Option
}

// Option is a function that modifies the server configuration.
type Option func(*Config)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddress: ":8080",
		A2APathPrefix: "/a2a",
		AgentCardPath: DefaultAgentCardPath,
	}
}

// WithListenAddress sets the listen address for the server.
func WithListenAddress(addr string) Option {
	return func(c *Config) {
		c.ListenAddress = addr
	}
}

// WithA2APathPrefix sets the path of the JSON-RPC endpoint.
func WithA2APathPrefix(prefix string) Option {
	return func(c *Config) {
		c.A2APathPrefix = normalizePath(prefix, "/a2a")
	}
}

// WithAgentCard sets the Agent Card for the server.
func WithAgentCard(card *a2a.AgentCard) Option {
	return func(c *Config) {
		c.AgentCard = card
	}
}

// WithAgentCardPath returns an Option that sets the path for serving the agent card.
func WithAgentCardPath(cardPath string) Option {
	return func(c *Config) {
		c.AgentCardPath = cardPath
	}
}

// WithWebSocket enables the WebSocket transport at path.
func WithWebSocket(path string) Option {
	return func(c *Config) {
		c.WebSocketPath = normalizePath(path, "/a2a/ws")
	}
}

// WithTaskManager sets a custom TaskManager implementation.
func WithTaskManager(tm TaskManager) Option {
	return func(c *Config) {
		c.TaskManager = tm
	}
}

// WithTaskHandler sets the application-specific task handler function.
// This is required unless a custom TaskManager is provided.
func WithTaskHandler(handler task.Handler) Option {
	return func(c *Config) {
		c.TaskHandler = handler
	}
}

// WithStore sets the task store used by the built-in processor.
func WithStore(s store.Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithAuthenticator sets the access policy.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(c *Config) {
		c.Authenticator = a
	}
}

// WithAPIKeyHeader sets the header read for the "apiKey" auth scheme.
func WithAPIKeyHeader(name string) Option {
	return func(c *Config) {
		c.APIKeyHeader = name
	}
}

// WithPushSender replaces the webhook sender.
func WithPushSender(s push.Sender) Option {
	return func(c *Config) {
		c.PushSender = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithBrokerOptions tunes the streaming broker.
func WithBrokerOptions(opts ...stream.Option) Option {
	return func(c *Config) {
		c.BrokerOptions = append(c.BrokerOptions, opts...)
	}
}

// WithRegistryOptions tunes push delivery.
func WithRegistryOptions(opts ...push.Option) Option {
	return func(c *Config) {
		c.RegistryOptions = append(c.RegistryOptions, opts...)
	}
}

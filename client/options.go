package client

import (
	"net/http"
	"time"

	"github.com/sammcj/go-a2a-core/a2a"
)

// Config holds the configuration for the A2A client.
type Config struct {
	HTTPClient    *http.Client      // HTTP client to use for requests
	Timeout       time.Duration     // Timeout for unary requests; streams are bounded by their context
	A2APath       string            // Path of the JSON-RPC endpoint below the base URL
	AgentCardPath string            // Path of the agent card below the base URL
	AgentCard     *a2a.AgentCard    // Cached agent card (if already fetched)
	Headers       map[string]string // Headers included in all requests
}

// Option is a function that modifies the client configuration.
type Option func(*Config)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		HTTPClient:    &http.Client{},
		Timeout:       30 * time.Second,
		A2APath:       "/a2a",
		AgentCardPath: "/.well-known/agent.json",
		Headers:       make(map[string]string),
	}
}

// WithHTTPClient sets the HTTP client for the client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Config) {
		if httpClient != nil {
			c.HTTPClient = httpClient
		}
	}
}

// WithTimeout sets the timeout for unary requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithA2APath sets the path of the JSON-RPC endpoint.
func WithA2APath(p string) Option {
	return func(c *Config) {
		c.A2APath = p
	}
}

// WithAgentCard sets a pre-fetched agent card.
func WithAgentCard(card *a2a.AgentCard) Option {
	return func(c *Config) {
		c.AgentCard = card
	}
}

// WithHeader adds a header to be included in all requests.
func WithHeader(name, value string) Option {
	return func(c *Config) {
		c.Headers[name] = value
	}
}

// WithBearerToken sets the Authorization header with a Bearer token.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

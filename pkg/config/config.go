// Package config defines the server configuration file format.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sammcj/go-a2a-core/a2a"
)

// EnvPrefix prefixes every environment override, e.g. A2A_LISTEN_ADDRESS.
const EnvPrefix = "A2A_"

// ConfigFormat represents the format of a configuration file.
type ConfigFormat string

const (
	// ConfigFormatJSON represents JSON format.
	ConfigFormatJSON ConfigFormat = "json"
	// ConfigFormatYAML represents YAML format.
	ConfigFormatYAML ConfigFormat = "yaml"
)

// FormatOf returns the format implied by the file extension of path.
func FormatOf(path string) (ConfigFormat, error) {
	switch ext := filepath.Ext(path); ext {
	case ".json":
		return ConfigFormatJSON, nil
	case ".yaml", ".yml":
		return ConfigFormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config file format: %q", ext)
	}
}

// Duration is a time.Duration written as a string such as "1.5s" in
// config files and environment variables.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig represents the configuration for the A2A server.
type ServerConfig struct {
	ListenAddress string          `json:"listenAddress" yaml:"listenAddress" env:"LISTEN_ADDRESS" validate:"required"`
	A2APathPrefix string          `json:"a2aPathPrefix" yaml:"a2aPathPrefix" env:"PATH_PREFIX" validate:"required,startswith=/"`
	AgentCardPath string          `json:"agentCardPath" yaml:"agentCardPath" env:"AGENT_CARD_PATH" validate:"required,startswith=/"`
	WebSocketPath string          `json:"webSocketPath,omitempty" yaml:"webSocketPath,omitempty" env:"WEBSOCKET_PATH" validate:"omitempty,startswith=/"`
	LogLevel      string          `json:"logLevel" yaml:"logLevel" env:"LOG_LEVEL" validate:"oneof=debug info warn error fatal"`
	AgentCard     AgentCardConfig `json:"agentCard" yaml:"agentCard" envPrefix:"AGENT_"`
	Store         StoreConfig     `json:"store" yaml:"store" envPrefix:"STORE_"`
	Auth          AuthConfig      `json:"auth" yaml:"auth" envPrefix:"AUTH_"`
	Push          PushConfig      `json:"push" yaml:"push" envPrefix:"PUSH_"`
	Stream        StreamConfig    `json:"stream" yaml:"stream" envPrefix:"STREAM_"`
	Handler       HandlerConfig   `json:"handler" yaml:"handler" envPrefix:"HANDLER_"`
	LLM           LLMConfig       `json:"llm" yaml:"llm" envPrefix:"LLM_"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER" validate:"oneof=memory sqlite"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"DSN" validate:"required_if=Driver sqlite"`
}

// AuthConfig selects how callers are authenticated.
type AuthConfig struct {
	Mode         string `json:"mode" yaml:"mode" env:"MODE" validate:"oneof=none token jwt"`
	Token        string `json:"token,omitempty" yaml:"token,omitempty" env:"TOKEN" validate:"required_if=Mode token"`
	JWTSecret    string `json:"jwtSecret,omitempty" yaml:"jwtSecret,omitempty" env:"JWT_SECRET" validate:"required_if=Mode jwt"`
	JWTIssuer    string `json:"jwtIssuer,omitempty" yaml:"jwtIssuer,omitempty" env:"JWT_ISSUER"`
	APIKeyHeader string `json:"apiKeyHeader,omitempty" yaml:"apiKeyHeader,omitempty" env:"API_KEY_HEADER"`
}

// PushConfig tunes push notification delivery.
type PushConfig struct {
	MaxAttempts  int      `json:"maxAttempts" yaml:"maxAttempts" env:"MAX_ATTEMPTS" validate:"gte=1"`
	InitialDelay Duration `json:"initialDelay" yaml:"initialDelay" env:"INITIAL_DELAY" validate:"gt=0"`
	MaxDelay     Duration `json:"maxDelay" yaml:"maxDelay" env:"MAX_DELAY" validate:"gtefield=InitialDelay"`
	Multiplier   float64  `json:"multiplier" yaml:"multiplier" env:"MULTIPLIER" validate:"gte=1"`
	Timeout      Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
}

// StreamConfig tunes the subscriber buffers.
type StreamConfig struct {
	Buffer       int      `json:"buffer" yaml:"buffer" env:"BUFFER" validate:"gte=1"`
	GraceTimeout Duration `json:"graceTimeout" yaml:"graceTimeout" env:"GRACE_TIMEOUT" validate:"gte=0"`
}

// HandlerConfig selects the bundled task handler.
type HandlerConfig struct {
	Name string `json:"name" yaml:"name" env:"NAME" validate:"oneof=echo llm"`
}

// LLMConfig is a config for use with gollm.
type LLMConfig struct {
	Provider     string `json:"provider" yaml:"provider" env:"PROVIDER"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`
	APIKey       string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" env:"API_KEY"`
	SystemPrompt string `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty" env:"SYSTEM_PROMPT"`
	MaxTokens    int    `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty" env:"MAX_TOKENS" validate:"gte=0"`
}

// AgentCardConfig represents the configuration for an agent card.
type AgentCardConfig struct {
	Name               string             `json:"name" yaml:"name" env:"NAME" validate:"required"`
	Description        string             `json:"description,omitempty" yaml:"description,omitempty" env:"DESCRIPTION"`
	URL                string             `json:"url" yaml:"url" env:"URL" validate:"required,url"`
	Version            string             `json:"version" yaml:"version" env:"VERSION" validate:"required"`
	DocumentationURL   string             `json:"documentationUrl,omitempty" yaml:"documentationUrl,omitempty" env:"DOCUMENTATION_URL"`
	Provider           ProviderConfig     `json:"provider" yaml:"provider,omitempty"`
	Capabilities       CapabilitiesConfig `json:"capabilities" yaml:"capabilities"`
	DefaultInputModes  []string           `json:"defaultInputModes,omitempty" yaml:"defaultInputModes,omitempty"`
	DefaultOutputModes []string           `json:"defaultOutputModes,omitempty" yaml:"defaultOutputModes,omitempty"`
	Skills             []SkillConfig      `json:"skills" yaml:"skills" validate:"dive"`
}

// ProviderConfig represents the configuration for an agent provider. It is
// left off the card when Organization is empty.
type ProviderConfig struct {
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty" env:"PROVIDER_ORGANIZATION"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty" env:"PROVIDER_URL" validate:"omitempty,url"`
}

// SkillConfig represents the configuration for an agent skill.
type SkillConfig struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	InputSchema any      `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
}

// CapabilitiesConfig represents the configuration for agent capabilities.
type CapabilitiesConfig struct {
	Streaming              bool `json:"streaming" yaml:"streaming" env:"STREAMING"`
	PushNotifications      bool `json:"pushNotifications" yaml:"pushNotifications" env:"PUSH_NOTIFICATIONS"`
	StateTransitionHistory bool `json:"stateTransitionHistory" yaml:"stateTransitionHistory" env:"STATE_TRANSITION_HISTORY"`
}

// Default returns a default server configuration: an echo agent on :8080
// with an in-memory store and no authentication.
func Default() *ServerConfig {
	return &ServerConfig{
		ListenAddress: ":8080",
		A2APathPrefix: "/a2a",
		AgentCardPath: "/.well-known/agent.json",
		LogLevel:      "info",
		AgentCard: AgentCardConfig{
			Name:               "Go A2A Server",
			Description:        "A standalone A2A server implemented in Go",
			URL:                "http://localhost:8080/a2a",
			Version:            "1.0.0",
			Capabilities:       CapabilitiesConfig{Streaming: true, PushNotifications: true},
			DefaultInputModes:  []string{"text/plain"},
			DefaultOutputModes: []string{"text/plain"},
		},
		Store: StoreConfig{Driver: "memory"},
		Auth:  AuthConfig{Mode: "none"},
		Push: PushConfig{
			MaxAttempts:  5,
			InitialDelay: Duration(500 * time.Millisecond),
			MaxDelay:     Duration(30 * time.Second),
			Multiplier:   2,
			Timeout:      Duration(10 * time.Second),
		},
		Stream:  StreamConfig{Buffer: 64, GraceTimeout: Duration(time.Second)},
		Handler: HandlerConfig{Name: "echo"},
		LLM:     LLMConfig{Provider: "ollama", Model: "llama3", MaxTokens: 1000},
	}
}

// Load builds the configuration from the defaults, the file at path (if
// path is not empty), and A2A_ environment variables, in that order, and
// validates the result.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()

	if path != "" {
		if _, err := FormatOf(path); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// JSON is a subset of YAML, so one decoder serves both formats.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for missing or inconsistent values.
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Handler.Name == "llm" && (c.LLM.Provider == "" || c.LLM.Model == "") {
		return errors.New("invalid config: llm handler requires llm.provider and llm.model")
	}
	return nil
}

// Save writes the configuration to path as JSON or YAML depending on the
// file extension.
func Save(cfg *ServerConfig, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case ConfigFormatJSON:
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s config: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ToAgentCard converts the configuration to an agent card.
func (c AgentCardConfig) ToAgentCard() *a2a.AgentCard {
	card := &a2a.AgentCard{
		Name:             c.Name,
		Description:      c.Description,
		URL:              c.URL,
		Version:          c.Version,
		DocumentationURL: c.DocumentationURL,
		Capabilities: a2a.AgentCapabilities{
			Streaming:              c.Capabilities.Streaming,
			PushNotifications:      c.Capabilities.PushNotifications,
			StateTransitionHistory: c.Capabilities.StateTransitionHistory,
		},
		DefaultInputModes:  c.DefaultInputModes,
		DefaultOutputModes: c.DefaultOutputModes,
		Skills:             make([]a2a.AgentSkill, 0, len(c.Skills)),
	}
	if c.Provider.Organization != "" {
		card.Provider = &a2a.AgentProvider{Organization: c.Provider.Organization, URL: c.Provider.URL}
	}
	for _, s := range c.Skills {
		card.Skills = append(card.Skills, a2a.AgentSkill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        s.Tags,
			Examples:    s.Examples,
			InputSchema: s.InputSchema,
		})
	}
	return card
}

// AuthSchemes returns the schemes to advertise on the agent card for the
// configured authentication mode.
func (a AuthConfig) AuthSchemes() []string {
	switch a.Mode {
	case "token", "jwt":
		schemes := []string{"bearer"}
		if a.APIKeyHeader != "" {
			schemes = append(schemes, "apiKey")
		}
		return schemes
	default:
		return nil
	}
}

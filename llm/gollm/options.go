package gollm

import (
	"errors"

	"github.com/teilomillet/gollm"

	"github.com/sammcj/go-a2a-core/llm"
)

// options is the adapter configuration. APIKey may be empty for local
// providers such as ollama; Memory of zero disables gollm's memory buffer.
type options struct {
	Provider       string
	Model          string
	APIKey         string
	MaxTokens      int
	Memory         int
	MaxContextSize int // reported through GetModelInfo only
}

// Option configures the gollm adapter.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		Provider:       "ollama",
		Model:          "llama3",
		MaxTokens:      1000,
		MaxContextSize: 8192,
	}
}

func (o *options) validate() error {
	switch {
	case o.Provider == "":
		return errors.New("gollm: provider is required")
	case o.Model == "":
		return errors.New("gollm: model is required")
	case o.MaxTokens <= 0:
		return errors.New("gollm: max tokens must be positive")
	}
	return nil
}

func (o *options) configOptions() []gollm.ConfigOption {
	cfg := []gollm.ConfigOption{
		gollm.SetProvider(o.Provider),
		gollm.SetModel(o.Model),
		gollm.SetMaxTokens(o.MaxTokens),
	}
	if o.APIKey != "" {
		cfg = append(cfg, gollm.SetAPIKey(o.APIKey))
	}
	if o.Memory > 0 {
		cfg = append(cfg, gollm.SetMemory(o.Memory))
	}
	return cfg
}

func (o *options) modelInfo() llm.LLMModelInfo {
	return llm.LLMModelInfo{
		Name:             o.Model,
		Provider:         o.Provider,
		MaxContextSize:   o.MaxContextSize,
		InputModalities:  []string{"text/plain"},
		OutputModalities: []string{"text/plain"},
	}
}

// WithProvider sets the LLM provider.
func WithProvider(provider string) Option {
	return func(o *options) {
		o.Provider = provider
	}
}

// WithModel sets the LLM model.
func WithModel(model string) Option {
	return func(o *options) {
		o.Model = model
	}
}

// WithAPIKey sets the API key for authentication.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.APIKey = apiKey
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(o *options) {
		o.MaxTokens = maxTokens
	}
}

// WithMemory sets the memory size for context retention.
func WithMemory(memory int) Option {
	return func(o *options) {
		o.Memory = memory
	}
}

// WithMaxContextSize sets the maximum context size for the model.
func WithMaxContextSize(maxContextSize int) Option {
	return func(o *options) {
		o.MaxContextSize = maxContextSize
	}
}

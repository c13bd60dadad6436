// Package llm is the model abstraction used by LLM-backed task handlers.
package llm

import "context"

// LLMInterface is a text generation backend.
type LLMInterface interface {
	// Generate returns the model's completion of prompt.
	Generate(ctx context.Context, prompt string, options ...LLMOption) (string, error)
	GetModelInfo() LLMModelInfo
}

// LLMModelInfo describes the model behind an LLMInterface. Handlers copy it
// into artifact metadata.
type LLMModelInfo struct {
	Name             string
	Provider         string
	MaxContextSize   int      // tokens
	InputModalities  []string // MIME types, e.g. "text/plain"
	OutputModalities []string
}

// LLMOptions holds per-call generation settings.
type LLMOptions struct {
	SystemPrompt string
}

// LLMOption mutates LLMOptions.
type LLMOption func(*LLMOptions)

// DefaultLLMOptions returns empty options.
func DefaultLLMOptions() *LLMOptions {
	return &LLMOptions{}
}

// ApplyOptions returns the defaults with opts applied in order.
func ApplyOptions(opts ...LLMOption) *LLMOptions {
	o := DefaultLLMOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithSystemPrompt sets instructions sent ahead of the prompt.
func WithSystemPrompt(systemPrompt string) LLMOption {
	return func(o *LLMOptions) {
		o.SystemPrompt = systemPrompt
	}
}

// Package gollm provides an implementation of the LLM interface using the gollm library.
package gollm

import (
	"context"
	"errors"
	"fmt"

	"github.com/teilomillet/gollm"

	"github.com/sammcj/go-a2a-core/llm"
)

// Adapter implements the LLM interface using the gollm library.
type Adapter struct {
	llmClient gollm.LLM
	modelInfo llm.LLMModelInfo
}

var _ llm.LLMInterface = (*Adapter)(nil)

// NewAdapter creates a new gollm adapter.
func NewAdapter(opts ...Option) (*Adapter, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	llmClient, err := gollm.NewLLM(options.configOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm client: %w", err)
	}

	return &Adapter{
		llmClient: llmClient,
		modelInfo: options.modelInfo(),
	}, nil
}

// Generate implements the LLM interface Generate method.
func (a *Adapter) Generate(ctx context.Context, promptText string, options ...llm.LLMOption) (string, error) {
	if promptText == "" {
		return "", errors.New("prompt is empty")
	}
	opts := llm.ApplyOptions(options...)

	var promptOpts []gollm.PromptOption
	if opts.SystemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithDirectives(opts.SystemPrompt))
	}
	prompt := gollm.NewPrompt(promptText, promptOpts...)

	response, err := a.llmClient.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("gollm generation failed: %w", err)
	}
	return response, nil
}

// GetModelInfo implements the LLM interface GetModelInfo method.
func (a *Adapter) GetModelInfo() llm.LLMModelInfo {
	return a.modelInfo
}

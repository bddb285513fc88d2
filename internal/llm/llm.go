// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a model produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model overrides the client's default model.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the response length (0 means provider default).
	MaxTokens int
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Name returns "provider/model" for logging.
	Name() string
}

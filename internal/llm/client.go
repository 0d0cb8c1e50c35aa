// Package llm talks to the local language model that turns conversation
// text into structured actions. Providers implement Client; Gateway wraps a
// provider with the timeout, retry and concurrency rules every turn relies on.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string   `json:"model,omitempty"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the full text produced for a request.
type CompletionResponse struct {
	Content  string        `json:"content"`
	Model    string        `json:"model,omitempty"`
	Usage    Usage         `json:"usage"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all model providers implement.
type Client interface {
	// Complete sends a request and returns the full response. Providers
	// never return partial text alongside an error.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "ollama", "openai").
	Name() string
}

// ModelLister is implemented by providers that can enumerate the models
// their endpoint serves. Used for health checks.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

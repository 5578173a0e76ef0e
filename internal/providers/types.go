// Package providers abstracts the LLM reasoning engine behind a small
// interface. The runtime only ever needs blocking chat completion; the
// concrete implementation speaks the OpenAI-compatible protocol of local
// model servers.
package providers

import "context"

// Provider is the interface the planner, reflection pipeline, and
// privileged handlers reason through.
type Provider interface {
	// Chat sends messages to the LLM and returns a response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "openai", "local").
	Name() string
}

// ChatRequest contains the input for a Chat call.
type ChatRequest struct {
	Messages []Message      `json:"messages"`
	Model    string         `json:"model,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChatResponse is the result from an LLM call.
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"` // "stop", "length", "content_filter"
	Usage        *Usage `json:"usage,omitempty"`
}

// Blocked reports whether the pipeline refused to produce output.
func (r *ChatResponse) Blocked() bool {
	return r.FinishReason == "content_filter"
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

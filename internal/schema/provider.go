package schema

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one callable function in a provider-neutral form.
// Parameters holds a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatOptions tune a single LLM request. Zero values fall back to the
// provider's configured defaults.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// TokenUsage reports token accounting for one completed request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMResponse is the provider-neutral result of a chat completion.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        TokenUsage
}

// StreamHandler receives incremental text fragments during a streaming
// completion. Implementations must be fast; they run on the receive path.
type StreamHandler func(fragment string)

// LLMProvider abstracts a chat-completion backend.
//
// Chat performs a blocking, tool-capable completion. Stream performs a
// text-only streaming completion, invoking onDelta for every fragment (onDelta
// may be nil) and returning the accumulated text.
type LLMProvider interface {
	Chat(ctx context.Context, msgs *Messages, tools []ToolDefinition, opts ChatOptions) (*LLMResponse, error)
	Stream(ctx context.Context, msgs *Messages, opts ChatOptions, onDelta StreamHandler) (string, error)
	DefaultModel() string
}

// Package agent hosts the reasoning-engine side of the broker: the LLM
// provider contract, the runtime loop that drives model iterations against
// the tool registry, the streaming event translator, and the per-session
// conversation manager.
package agent

import (
	"context"

	"github.com/deskpilot/deskpilot/internal/provider"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// LLMProvider is the interface for language model backends.
//
// Implementations must be safe for concurrent use; multiple goroutines may
// call Complete simultaneously for different requests.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response. The
	// returned channel is closed when the stream completes or fails.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name ("anthropic", "openai").
	Name() string
}

// CompletionRequest contains all parameters for one LLM completion call.
type CompletionRequest struct {
	// Model specifies which model to use. Empty means the backend default.
	Model string `json:"model"`

	// System is the system prompt, handled separately from messages by
	// most LLM APIs.
	System string `json:"system,omitempty"`

	// Messages is the conversation so far, in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools are the callable tool descriptors published by the provider
	// registry. Empty disables tool calling.
	Tools []*provider.Tool `json:"tools,omitempty"`

	// MaxTokens limits the response length; 0 uses the backend default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage is one turn in the conversation sent to a backend.
// Role is "user", "assistant", "system" or "tool".
type CompletionMessage struct {
	Role        string               `json:"role"`
	Content     string               `json:"content,omitempty"`
	ToolCalls   []models.ToolCall    `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult  `json:"tool_results,omitempty"`
}

// CompletionChunk is one item in a backend's streaming response. Exactly
// one of the fields is meaningful per chunk.
type CompletionChunk struct {
	// Text is partial response text, streamed incrementally.
	Text string `json:"text,omitempty"`

	// ToolCall is a complete tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done marks successful stream completion.
	Done bool `json:"done,omitempty"`

	// Error terminates the stream.
	Error error `json:"-"`
}

package agent

import (
	"context"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// EngineEventType tags the variants of an engine event.
type EngineEventType string

const (
	// EventTextStart opens a text part; Content carries its initial text,
	// which may be empty.
	EventTextStart EngineEventType = "text_start"

	// EventTextDelta appends to the current text part.
	EventTextDelta EngineEventType = "text_delta"

	// EventToolCall announces a tool invocation the engine is about to
	// execute.
	EventToolCall EngineEventType = "tool_call"

	// EventRunResult is the terminal success event carrying every turn
	// captured during the run.
	EventRunResult EngineEventType = "run_result"

	// EventError is the terminal failure event.
	EventError EngineEventType = "error"
)

// EngineEvent is one event on a reasoning-engine run stream.
type EngineEvent struct {
	Type EngineEventType

	// Content holds text for TextStart and TextDelta events.
	Content string

	// ToolName and ToolArgs describe a ToolCall event.
	ToolName string
	ToolArgs map[string]any

	// Captured holds the run's generated turns for a RunResult event.
	Captured []models.Message

	// Err holds the failure for an Error event.
	Err error
}

// Engine is the reasoning-engine contract consumed by the translator: one
// invocation per call, yielding an ordered event stream that ends with
// either a RunResult or an Error event before the channel closes.
type Engine interface {
	RunStream(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) <-chan EngineEvent
}

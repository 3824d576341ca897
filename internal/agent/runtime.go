package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/observability"
	"github.com/deskpilot/deskpilot/internal/provider"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// defaultMaxIterations bounds the model/tool loop for one run. Each
// iteration is one model completion plus the execution of any tools it
// requested.
const defaultMaxIterations = 10

// ToolRunner is the slice of the provider registry the runtime needs:
// published tool descriptors and dispatch by namespaced name.
type ToolRunner interface {
	Tools() []*provider.Tool
	Call(ctx context.Context, name string, args map[string]any) (*provider.CallResult, error)
}

// RuntimeConfig configures a Runtime.
type RuntimeConfig struct {
	Provider      LLMProvider
	Registry      ToolRunner
	Model         string
	MaxTokens     int
	MaxIterations int
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Runtime drives the reasoning engine: it streams model output, executes
// requested tools through the provider registry (whose hooks inject the
// caller's credentials from the run context), feeds results back, and loops
// until the model answers without tool calls. It implements Engine.
type Runtime struct {
	llm           LLMProvider
	registry      ToolRunner
	model         string
	maxTokens     int
	maxIterations int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewRuntime builds a Runtime.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Runtime{
		llm:           cfg.Provider,
		registry:      cfg.Registry,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: maxIterations,
		logger:        logger.With("component", "agent-runtime"),
		metrics:       cfg.Metrics,
	}
}

// RunStream executes one run and returns its ordered event stream. The
// channel always ends with exactly one RunResult or Error event.
func (r *Runtime) RunStream(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) <-chan EngineEvent {
	events := make(chan EngineEvent)
	go r.run(ctx, input, history, bag, events)
	return events
}

func (r *Runtime) run(ctx context.Context, input string, history []models.Message, bag *credentials.Bag, events chan<- EngineEvent) {
	defer close(events)

	if bag == nil {
		bag = &credentials.Bag{}
	}
	// Hooks read the bag from the call context; nothing else in the run
	// path touches raw secrets.
	ctx = credentials.NewContext(ctx, bag)

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   input,
		CreatedAt: time.Now().UTC(),
	}
	captured := []models.Message{userMsg}

	conversation := make([]CompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		conversation = append(conversation, toCompletionMessage(msg))
	}
	conversation = append(conversation, toCompletionMessage(userMsg))

	var tools []*provider.Tool
	if r.registry != nil {
		tools = r.registry.Tools()
	}
	system := SystemPrompt(time.Now())

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		assistant, toolCalls, err := r.completeOnce(ctx, system, conversation, tools, events)
		if err != nil {
			r.recordError("completion")
			r.emit(ctx, events, EngineEvent{Type: EventError, Err: err})
			return
		}

		captured = append(captured, assistant)
		conversation = append(conversation, toCompletionMessage(assistant))

		if len(toolCalls) == 0 {
			break
		}

		results, err := r.executeTools(ctx, toolCalls)
		if err != nil {
			r.recordError("tool_execution")
			r.emit(ctx, events, EngineEvent{Type: EventError, Err: err})
			return
		}

		toolMsg := models.Message{
			ID:          uuid.NewString(),
			Role:        models.RoleTool,
			ToolResults: results,
			CreatedAt:   time.Now().UTC(),
		}
		captured = append(captured, toolMsg)
		conversation = append(conversation, toCompletionMessage(toolMsg))
	}

	r.emit(ctx, events, EngineEvent{Type: EventRunResult, Captured: captured})
}

// emit delivers an event unless the consumer is gone; a canceled context
// unblocks the run so an abandoned stream cannot wedge it.
func (r *Runtime) emit(ctx context.Context, events chan<- EngineEvent, ev EngineEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// completeOnce runs a single model completion, forwarding text and tool-call
// events as they stream, and returns the assembled assistant turn.
func (r *Runtime) completeOnce(ctx context.Context, system string, conversation []CompletionMessage, tools []*provider.Tool, events chan<- EngineEvent) (models.Message, []models.ToolCall, error) {
	start := time.Now()
	chunks, err := r.llm.Complete(ctx, &CompletionRequest{
		Model:     r.model,
		System:    system,
		Messages:  conversation,
		Tools:     tools,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		r.recordLLMRequest("error", start)
		return models.Message{}, nil, fmt.Errorf("completion: %w", err)
	}

	var (
		text      strings.Builder
		toolCalls []models.ToolCall
		textOpen  bool
	)
	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			r.recordLLMRequest("error", start)
			return models.Message{}, nil, chunk.Error

		case chunk.Text != "":
			ev := EngineEvent{Type: EventTextDelta, Content: chunk.Text}
			if !textOpen {
				ev.Type = EventTextStart
				textOpen = true
			}
			if !r.emit(ctx, events, ev) {
				r.recordLLMRequest("error", start)
				return models.Message{}, nil, ctx.Err()
			}
			text.WriteString(chunk.Text)

		case chunk.ToolCall != nil:
			tc := *chunk.ToolCall
			if tc.ID == "" {
				tc.ID = uuid.NewString()
			}
			toolCalls = append(toolCalls, tc)
			ev := EngineEvent{
				Type:     EventToolCall,
				ToolName: tc.Name,
				ToolArgs: decodeArgs(tc.Input),
			}
			if !r.emit(ctx, events, ev) {
				r.recordLLMRequest("error", start)
				return models.Message{}, nil, ctx.Err()
			}
		}
	}
	r.recordLLMRequest("success", start)

	assistant := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   text.String(),
		ToolCalls: toolCalls,
		CreatedAt: time.Now().UTC(),
	}
	return assistant, toolCalls, nil
}

// executeTools runs the model's requested tool calls through the registry.
// A transport-level failure aborts the run; a provider-reported tool error
// flows back to the model as an error result instead.
func (r *Runtime) executeTools(ctx context.Context, toolCalls []models.ToolCall) ([]models.ToolResult, error) {
	results := make([]models.ToolResult, 0, len(toolCalls))
	for _, tc := range toolCalls {
		start := time.Now()
		res, err := r.registry.Call(ctx, tc.Name, decodeArgs(tc.Input))
		if err != nil {
			if r.metrics != nil {
				r.metrics.RecordToolExecution(tc.Name, "error", time.Since(start).Seconds())
			}
			return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
		}

		status := "success"
		if res.IsError {
			status = "error"
		}
		if r.metrics != nil {
			r.metrics.RecordToolExecution(tc.Name, status, time.Since(start).Seconds())
		}
		r.logger.Debug("executed tool", "tool", tc.Name, "is_error", res.IsError)

		results = append(results, models.ToolResult{
			ToolCallID: tc.ID,
			Content:    res.Text(),
			IsError:    res.IsError,
		})
	}
	return results, nil
}

func (r *Runtime) recordLLMRequest(status string, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordLLMRequest(r.llm.Name(), r.model, status, time.Since(start).Seconds())
	}
}

func (r *Runtime) recordError(errorType string) {
	if r.metrics != nil {
		r.metrics.RecordError("agent", errorType)
	}
}

// decodeArgs parses a tool call's raw input into a map. Malformed input
// yields nil; downstream consumers treat that as no arguments.
func decodeArgs(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil
	}
	return args
}

func toCompletionMessage(msg models.Message) CompletionMessage {
	return CompletionMessage{
		Role:        string(msg.Role),
		Content:     msg.Content,
		ToolCalls:   msg.ToolCalls,
		ToolResults: msg.ToolResults,
	}
}

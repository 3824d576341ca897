package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/describe"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// Translator converts engine events into the client-facing stream protocol:
// text deltas, human-readable tool-call notices, and exactly one terminal
// done or error event per invocation.
type Translator struct {
	engine Engine
	logger *slog.Logger
}

// NewTranslator builds a Translator over the given engine.
func NewTranslator(engine Engine, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		engine: engine,
		logger: logger.With("component", "stream"),
	}
}

// Stream runs one turn and returns the ordered wire events. The input
// history slice is never mutated; the done event carries a fresh slice with
// the run's turns appended. A canceled context closes the channel without a
// terminal event; the terminal-event guarantee holds for any consumer that
// keeps reading.
func (t *Translator) Stream(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go t.translate(ctx, input, history, bag, out)
	return out
}

func (t *Translator) translate(ctx context.Context, input string, history []models.Message, bag *credentials.Bag, out chan<- models.StreamEvent) {
	defer close(out)

	// On failure the caller keeps its pre-run history untouched.
	finalHistory := history

	for ev := range t.engine.RunStream(ctx, input, history, bag) {
		switch ev.Type {
		case EventTextStart:
			// A part may open empty and fill in via deltas; an empty
			// opening emits nothing.
			if ev.Content != "" && !send(ctx, out, models.TextEvent(ev.Content)) {
				return
			}

		case EventTextDelta:
			if ev.Content != "" && !send(ctx, out, models.TextEvent(ev.Content)) {
				return
			}

		case EventToolCall:
			if !send(ctx, out, models.ToolCallEvent(describe.ToolCall(ev.ToolName, ev.ToolArgs))) {
				return
			}

		case EventRunResult:
			combined := make([]models.Message, 0, len(history)+len(ev.Captured))
			combined = append(combined, history...)
			combined = append(combined, ev.Captured...)
			finalHistory = combined

		case EventError:
			t.logger.Error("run failed", "error", ev.Err)
			send(ctx, out, models.ErrorEvent(errorMessage(ev.Err)))
			return
		}
	}

	send(ctx, out, models.DoneEvent(finalHistory))
}

// send delivers an event unless the consumer's context is gone.
func send(ctx context.Context, out chan<- models.StreamEvent, ev models.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ProcessMessage runs one turn to completion and returns the assistant's
// full text plus the updated history. It is the buffered counterpart of
// Stream for non-streaming clients.
func (t *Translator) ProcessMessage(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) (string, []models.Message, error) {
	var (
		text    strings.Builder
		updated []models.Message
	)
	for ev := range t.Stream(ctx, input, history, bag) {
		switch ev.Type {
		case models.StreamText:
			text.WriteString(ev.Content)
		case models.StreamDone:
			updated = ev.History
		case models.StreamError:
			return "", history, &RunError{Message: ev.Message}
		}
	}
	return text.String(), updated, nil
}

func errorMessage(err error) string {
	if err == nil {
		return "run failed"
	}
	return err.Error()
}

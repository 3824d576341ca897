package agent

import (
	"context"
	"testing"
	"time"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// scriptedEngine replays a fixed event sequence.
type scriptedEngine struct {
	events []EngineEvent
}

func (e *scriptedEngine) RunStream(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) <-chan EngineEvent {
	ch := make(chan EngineEvent, len(e.events))
	for _, ev := range e.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func collect(ch <-chan models.StreamEvent) []models.StreamEvent {
	var out []models.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamWireSequence(t *testing.T) {
	captured := []models.Message{
		{Role: models.RoleUser, Content: "book A1 tomorrow 10-11"},
		{Role: models.RoleAssistant, Content: "I've booked it"},
	}
	engine := &scriptedEngine{events: []EngineEvent{
		{Type: EventToolCall, ToolName: "dish_mcp_book_room", ToolArgs: map[string]any{
			"meeting_room_name": "A1",
			"start_datetime":    "2025-01-15T10:00:00",
			"end_datetime":      "2025-01-15T11:00:00",
		}},
		{Type: EventTextStart, Content: "I've"},
		{Type: EventTextDelta, Content: " booked it"},
		{Type: EventRunResult, Captured: captured},
	}}

	got := collect(NewTranslator(engine, nil).Stream(context.Background(), "book A1 tomorrow 10-11", nil, nil))

	wantTypes := []models.StreamEventType{models.StreamToolCall, models.StreamText, models.StreamText, models.StreamDone}
	if len(got) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantTypes), got)
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Errorf("event[%d].Type = %q, want %q", i, got[i].Type, want)
		}
	}
	if got[0].Tool != "Booking A1 for Wed 15 Jan, 10:00–11:00" {
		t.Errorf("tool description = %q", got[0].Tool)
	}
	if got[1].Content != "I've" || got[2].Content != " booked it" {
		t.Errorf("text events = %q, %q", got[1].Content, got[2].Content)
	}
	if len(got[3].History) != 2 {
		t.Errorf("done history length = %d, want 2", len(got[3].History))
	}
}

func TestStreamEmptyTextStartSuppressed(t *testing.T) {
	engine := &scriptedEngine{events: []EngineEvent{
		{Type: EventTextStart, Content: ""},
		{Type: EventTextDelta, Content: "hello"},
		{Type: EventRunResult},
	}}

	got := collect(NewTranslator(engine, nil).Stream(context.Background(), "hi", nil, nil))

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Type != models.StreamText || got[0].Content != "hello" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Type != models.StreamDone {
		t.Errorf("last event = %+v", got[1])
	}
}

func TestStreamDoneAppendsToHistory(t *testing.T) {
	history := make([]models.Message, 0, 8)
	history = append(history,
		models.Message{Role: models.RoleUser, Content: "earlier question"},
		models.Message{Role: models.RoleAssistant, Content: "earlier answer"},
	)
	captured := []models.Message{
		{Role: models.RoleUser, Content: "new question"},
		{Role: models.RoleAssistant, Content: "new answer"},
	}
	engine := &scriptedEngine{events: []EngineEvent{{Type: EventRunResult, Captured: captured}}}

	got := collect(NewTranslator(engine, nil).Stream(context.Background(), "new question", history, nil))

	final := got[len(got)-1]
	if final.Type != models.StreamDone {
		t.Fatalf("last event = %+v, want done", final)
	}
	if len(final.History) != 4 {
		t.Fatalf("final history length = %d, want 4", len(final.History))
	}
	if final.History[0].Content != "earlier question" || final.History[3].Content != "new answer" {
		t.Errorf("final history out of order: %+v", final.History)
	}
	// The caller's slice must not be touched even though it has spare
	// capacity.
	if len(history) != 2 {
		t.Errorf("input history mutated: length %d", len(history))
	}
}

func TestStreamErrorIsTerminal(t *testing.T) {
	engine := &scriptedEngine{events: []EngineEvent{
		{Type: EventTextStart, Content: "partial answer"},
		{Type: EventError, Err: &RunError{Message: "completion: connection reset"}},
	}}

	got := collect(NewTranslator(engine, nil).Stream(context.Background(), "hi", nil, nil))

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	last := got[len(got)-1]
	if last.Type != models.StreamError {
		t.Errorf("last event = %+v, want error", last)
	}
	if last.Message != "completion: connection reset" {
		t.Errorf("error message = %q", last.Message)
	}
	for _, ev := range got[:len(got)-1] {
		if ev.Type == models.StreamDone || ev.Type == models.StreamError {
			t.Errorf("terminal event before end of stream: %+v", ev)
		}
	}
}

func TestProcessMessageBuffersText(t *testing.T) {
	captured := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "Hello there"},
	}
	engine := &scriptedEngine{events: []EngineEvent{
		{Type: EventTextStart, Content: "Hello"},
		{Type: EventTextDelta, Content: " there"},
		{Type: EventRunResult, Captured: captured},
	}}

	text, updated, err := NewTranslator(engine, nil).ProcessMessage(context.Background(), "hi", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("text = %q", text)
	}
	if len(updated) != 2 {
		t.Errorf("updated history length = %d, want 2", len(updated))
	}
}

func TestProcessMessageError(t *testing.T) {
	history := []models.Message{{Role: models.RoleUser, Content: "earlier"}}
	engine := &scriptedEngine{events: []EngineEvent{
		{Type: EventError, Err: &RunError{Message: "boom"}},
	}}

	_, returned, err := NewTranslator(engine, nil).ProcessMessage(context.Background(), "hi", history, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(returned) != 1 || returned[0].Content != "earlier" {
		t.Errorf("history after failed run = %+v, want unchanged", returned)
	}
}

// slowEngine emits its result after a delay, used to exercise session
// serialization.
type slowEngine struct {
	delay time.Duration
}

func (e *slowEngine) RunStream(ctx context.Context, input string, history []models.Message, bag *credentials.Bag) <-chan EngineEvent {
	ch := make(chan EngineEvent, 1)
	go func() {
		defer close(ch)
		time.Sleep(e.delay)
		ch <- EngineEvent{Type: EventRunResult, Captured: []models.Message{
			{Role: models.RoleUser, Content: input},
			{Role: models.RoleAssistant, Content: "reply to " + input},
		}}
	}()
	return ch
}

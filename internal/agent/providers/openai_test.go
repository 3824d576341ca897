package providers

import (
	"context"
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deskpilot/deskpilot/internal/agent"
	"github.com/deskpilot/deskpilot/internal/provider"
	"github.com/deskpilot/deskpilot/pkg/models"
)

func TestNewOpenAIProviderWithoutKey(t *testing.T) {
	p := NewOpenAIProvider("")
	if p.Name() != "openai" {
		t.Errorf("Name() = %q", p.Name())
	}
	if _, err := p.Complete(context.Background(), &agent.CompletionRequest{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	messages := []agent.CompletionMessage{
		{Role: "user", Content: "cancel my booking"},
		{Role: "assistant", Content: "", ToolCalls: []models.ToolCall{
			{ID: "t1", Name: "dish_mcp_cancel_booking", Input: json.RawMessage(`{"booking_id":"b7"}`)},
		}},
		{Role: "tool", ToolResults: []models.ToolResult{
			{ToolCallID: "t1", Content: "cancelled"},
		}},
	}

	got := convertToOpenAIMessages(messages, "You are the desk assistant.")

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4 (system + 3)", len(got))
	}
	if got[0].Role != openai.ChatMessageRoleSystem || got[0].Content != "You are the desk assistant." {
		t.Errorf("system message = %+v", got[0])
	}
	if len(got[2].ToolCalls) != 1 || got[2].ToolCalls[0].Function.Name != "dish_mcp_cancel_booking" {
		t.Errorf("assistant tool calls = %+v", got[2].ToolCalls)
	}
	if got[2].ToolCalls[0].Function.Arguments != `{"booking_id":"b7"}` {
		t.Errorf("arguments = %q", got[2].ToolCalls[0].Function.Arguments)
	}
	if got[3].Role != openai.ChatMessageRoleTool || got[3].ToolCallID != "t1" {
		t.Errorf("tool result message = %+v", got[3])
	}
}

func TestConvertToOpenAIMessagesNoSystem(t *testing.T) {
	got := convertToOpenAIMessages([]agent.CompletionMessage{{Role: "user", Content: "hi"}}, "")
	if len(got) != 1 || got[0].Role != "user" {
		t.Errorf("messages = %+v", got)
	}
}

func TestConvertToOpenAITools(t *testing.T) {
	tools := []*provider.Tool{
		{
			Name:        "google_calendar_list-events",
			Description: "List calendar events",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"timeMin":{"type":"string"}}}`),
		},
		{
			Name:        "broken",
			InputSchema: json.RawMessage(`{{`),
		},
	}

	got := convertToOpenAITools(tools)

	if len(got) != 2 {
		t.Fatalf("got %d tools, want 2", len(got))
	}
	if got[0].Function.Name != "google_calendar_list-events" {
		t.Errorf("tool name = %q", got[0].Function.Name)
	}
	// Malformed schema degrades to an empty object instead of failing.
	params, ok := got[1].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("fallback schema = %+v", got[1].Function.Parameters)
	}
}

func TestOpenAIGetModel(t *testing.T) {
	p := NewOpenAIProvider("")
	if got := p.getModel(""); got != defaultOpenAIModel {
		t.Errorf("getModel(\"\") = %q", got)
	}
	if got := p.getModel("gpt-4o"); got != "gpt-4o" {
		t.Errorf("getModel(explicit) = %q", got)
	}
}

package models

// StreamEventType enumerates the wire events a streaming run can produce.
type StreamEventType string

const (
	StreamText     StreamEventType = "text"
	StreamToolCall StreamEventType = "tool_call"
	StreamDone     StreamEventType = "done"
	StreamError    StreamEventType = "error"
)

// StreamEvent is one push event on the client-facing stream. Exactly one
// terminal event (done or error) ends every invocation; text and tool_call
// events preserve the order the engine emitted them in.
//
// History rides on the done event only and is never serialized to the wire.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Message string          `json:"message,omitempty"`

	History []Message `json:"-"`
}

// TextEvent builds a text delta event.
func TextEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamText, Content: content}
}

// ToolCallEvent builds a tool invocation description event.
func ToolCallEvent(description string) StreamEvent {
	return StreamEvent{Type: StreamToolCall, Tool: description}
}

// DoneEvent builds the successful terminal event carrying the final history.
func DoneEvent(history []Message) StreamEvent {
	return StreamEvent{Type: StreamDone, History: history}
}

// ErrorEvent builds the failure terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamError, Message: message}
}

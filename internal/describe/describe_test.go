package describe

import "testing"

func TestToolCallRoomBooking(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{
			name: "book room with name and same-day range",
			tool: "dish_mcp_book_room",
			args: map[string]any{
				"meeting_room_name": "A1",
				"start_datetime":    "2025-01-15T10:00:00",
				"end_datetime":      "2025-01-15T11:00:00",
			},
			want: "Booking A1 for Wed 15 Jan, 10:00–11:00",
		},
		{
			name: "book room falls back to room_name key",
			tool: "dish_mcp_book_room",
			args: map[string]any{"room_name": "Lighthouse"},
			want: "Booking Lighthouse",
		},
		{
			name: "book room without any context",
			tool: "dish_mcp_book_room",
			args: map[string]any{},
			want: "Booking a meeting room",
		},
		{
			name: "availability with date",
			tool: "dish_mcp_check_availability_and_list_bookings",
			args: map[string]any{"start_datetime": "2025-01-15T09:00:00"},
			want: "Checking room availability for Wed 15 Jan",
		},
		{
			name: "availability without date",
			tool: "dish_mcp_check_availability_and_list_bookings",
			args: map[string]any{},
			want: "Checking room availability",
		},
		{
			name: "cancel is canned regardless of args",
			tool: "dish_mcp_cancel_booking",
			args: map[string]any{"start_datetime": "2025-01-15T09:00:00"},
			want: "Cancelling room booking",
		},
		{
			name: "unknown room action",
			tool: "dish_mcp_list_floor_plans",
			args: map[string]any{},
			want: "Accessing room bookings (list floor plans)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolCall(tt.tool, tt.args)
			if got != tt.want {
				t.Errorf("ToolCall(%q) = %q, want %q", tt.tool, got, tt.want)
			}
		})
	}
}

func TestToolCallCalendar(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{
			name: "simple action get-event",
			tool: "google_calendar_get-event",
			args: map[string]any{"eventId": "abc"},
			want: "Looking up event details",
		},
		{
			name: "simple action delete-event",
			tool: "google_calendar_delete-event",
			args: nil,
			want: "Removing calendar event",
		},
		{
			name: "simple action list-calendars",
			tool: "google_calendar_list-calendars",
			args: nil,
			want: "Fetching your calendars",
		},
		{
			name: "list events with same-day range",
			tool: "google_calendar_list-events",
			args: map[string]any{
				"timeMin": "2025-01-15T09:00:00Z",
				"timeMax": "2025-01-15T17:30:00Z",
			},
			want: "Checking your calendar for Wed 15 Jan, 09:00–17:30",
		},
		{
			name: "list events with cross-day range",
			tool: "google_calendar_list-events",
			args: map[string]any{
				"timeMin": "2025-01-15T09:00:00Z",
				"timeMax": "2025-01-17T17:00:00Z",
			},
			want: "Checking your calendar for Wed 15 Jan to Fri 17 Jan",
		},
		{
			name: "list events without dates",
			tool: "google_calendar_list-events",
			args: map[string]any{},
			want: "Checking your calendar",
		},
		{
			name: "create event with summary and date",
			tool: "google_calendar_create-event",
			args: map[string]any{
				"summary":        "Standup",
				"start_datetime": "2025-01-16T09:30:00",
			},
			want: "Creating 'Standup' on Thu 16 Jan",
		},
		{
			name: "create event title key fallback",
			tool: "google_calendar_create-event",
			args: map[string]any{"title": "Review"},
			want: "Creating 'Review'",
		},
		{
			name: "create event without context",
			tool: "google_calendar_create-event",
			args: map[string]any{},
			want: "Creating a new calendar event",
		},
		{
			name: "update event with summary",
			tool: "google_calendar_update-event",
			args: map[string]any{"summary": "1:1"},
			want: "Updating '1:1'",
		},
		{
			name: "update event without context",
			tool: "google_calendar_update-event",
			args: map[string]any{},
			want: "Updating calendar event",
		},
		{
			name: "unknown calendar action",
			tool: "google_calendar_move-event",
			args: map[string]any{},
			want: "Accessing Google Calendar (move event)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolCall(tt.tool, tt.args)
			if got != tt.want {
				t.Errorf("ToolCall(%q) = %q, want %q", tt.tool, got, tt.want)
			}
		})
	}
}

func TestToolCallDateKeyPrecedence(t *testing.T) {
	// timeMin/timeMax win over start_datetime/end_datetime when both pairs
	// are present.
	got := ToolCall("google_calendar_list-events", map[string]any{
		"timeMin":        "2025-03-03T08:00:00Z",
		"timeMax":        "2025-03-03T09:00:00Z",
		"start_datetime": "2025-06-06T10:00:00",
		"end_datetime":   "2025-06-06T11:00:00",
	})
	want := "Checking your calendar for Mon 03 Mar, 08:00–09:00"
	if got != want {
		t.Errorf("ToolCall() = %q, want %q", got, want)
	}
}

func TestToolCallFallback(t *testing.T) {
	got := ToolCall("unknown_tool_x", map[string]any{})
	if got != "Processing: unknown tool x" {
		t.Errorf("ToolCall() = %q, want %q", got, "Processing: unknown tool x")
	}

	got = ToolCall("some-dashed-tool", nil)
	if got != "Processing: some dashed tool" {
		t.Errorf("ToolCall() = %q, want %q", got, "Processing: some dashed tool")
	}
}

func TestToolCallTotality(t *testing.T) {
	// Malformed args must degrade to the context-free branch, never panic.
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{
			name: "non-string date value",
			tool: "dish_mcp_book_room",
			args: map[string]any{"start_datetime": 42, "meeting_room_name": "A1"},
			want: "Booking A1",
		},
		{
			name: "unparseable date",
			tool: "dish_mcp_check_availability_and_list_bookings",
			args: map[string]any{"start_datetime": "not a date"},
			want: "Checking room availability",
		},
		{
			name: "unparseable end date drops the whole phrase",
			tool: "google_calendar_list-events",
			args: map[string]any{
				"timeMin": "2025-01-15T09:00:00Z",
				"timeMax": "garbage",
			},
			want: "Checking your calendar",
		},
		{
			name: "nil args map",
			tool: "dish_mcp_book_room",
			args: nil,
			want: "Booking a meeting room",
		},
		{
			name: "non-string room name",
			tool: "dish_mcp_book_room",
			args: map[string]any{"meeting_room_name": []string{"A1"}},
			want: "Booking a meeting room",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolCall(tt.tool, tt.args)
			if got != tt.want {
				t.Errorf("ToolCall(%q) = %q, want %q", tt.tool, got, tt.want)
			}
		})
	}
}

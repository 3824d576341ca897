// Package describe renders one-line human-readable summaries of tool calls.
//
// The describer sits on the observability/UX path between the reasoning
// engine and the client stream: every tool invocation the engine requests is
// summarized before it executes. It is total by contract — malformed or
// missing arguments degrade to a context-free phrase, never an error.
package describe

import (
	"fmt"
	"strings"
	"time"
)

const (
	calendarPrefix = "google_calendar_"
	roomPrefix     = "dish_mcp_"
)

var gcalSimpleActions = map[string]string{
	"get-event":      "Looking up event details",
	"delete-event":   "Removing calendar event",
	"list-calendars": "Fetching your calendars",
}

// ToolCall builds a user-friendly description of a tool invocation.
// Dispatch is on the provider namespace prefix of the tool name; names with
// no recognized prefix fall back to "Processing: <name with separators as
// spaces>".
func ToolCall(toolName string, args map[string]any) string {
	if action, ok := strings.CutPrefix(toolName, calendarPrefix); ok {
		return describeCalendar(action, args)
	}
	if action, ok := strings.CutPrefix(toolName, roomPrefix); ok {
		return describeRoomBooking(action, args)
	}

	action := strings.NewReplacer("_", " ", "-", " ").Replace(toolName)
	return "Processing: " + action
}

func describeCalendar(action string, args map[string]any) string {
	if phrase, ok := gcalSimpleActions[action]; ok {
		return phrase
	}

	dateInfo := formatDateRange(args)
	summary := stringArg(args, "summary", "title")

	switch action {
	case "list-events":
		if dateInfo == "" {
			return "Checking your calendar"
		}
		return "Checking your calendar for " + dateInfo
	case "create-event":
		if summary == "" {
			return "Creating a new calendar event"
		}
		desc := fmt.Sprintf("Creating '%s'", summary)
		if dateInfo != "" {
			desc += " on " + dateInfo
		}
		return desc
	case "update-event":
		if summary == "" {
			return "Updating calendar event"
		}
		return fmt.Sprintf("Updating '%s'", summary)
	}

	return fmt.Sprintf("Accessing Google Calendar (%s)", strings.ReplaceAll(action, "-", " "))
}

func describeRoomBooking(action string, args map[string]any) string {
	if action == "cancel_booking" {
		return "Cancelling room booking"
	}

	dateInfo := formatDateRange(args)
	roomName := stringArg(args, "meeting_room_name", "room_name")

	switch action {
	case "check_availability_and_list_bookings":
		if dateInfo != "" {
			return "Checking room availability for " + dateInfo
		}
		return "Checking room availability"
	case "book_room":
		room := roomName
		if room == "" {
			room = "a meeting room"
		}
		if dateInfo != "" {
			return fmt.Sprintf("Booking %s for %s", room, dateInfo)
		}
		return "Booking " + room
	}

	return fmt.Sprintf("Accessing room bookings (%s)", strings.ReplaceAll(action, "_", " "))
}

// formatDateRange derives a human date phrase from whichever time keys are
// present. timeMin/timeMax take precedence over start_datetime/end_datetime
// key by key; an absent or unparseable start yields no phrase at all.
func formatDateRange(args map[string]any) string {
	timeMin := stringArg(args, "timeMin", "start_datetime")
	timeMax := stringArg(args, "timeMax", "end_datetime")

	if timeMin == "" {
		return ""
	}

	start, err := parseISO(timeMin)
	if err != nil {
		return ""
	}
	startStr := start.Format("Mon 02 Jan")

	if timeMax != "" {
		end, err := parseISO(timeMax)
		if err != nil {
			return ""
		}
		if sameDate(start, end) {
			return fmt.Sprintf("%s, %s–%s", startStr, start.Format("15:04"), end.Format("15:04"))
		}
		return fmt.Sprintf("%s to %s", startStr, end.Format("Mon 02 Jan"))
	}
	return startStr
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISO(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// stringArg returns the first key whose value is a non-empty string.
func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

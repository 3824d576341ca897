// Package hooks implements the per-provider credential injection hooks.
//
// A hook runs between the reasoning engine emitting a tool call and the
// provider executing it. It reads the request's credential bag from the
// call context, augments the outbound arguments, and forwards exactly once.
// This is the only point in the process where raw secret material crosses
// into a third-party call; the model only ever sees argument names.
package hooks

import (
	"context"
	"strings"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/provider"
)

// bookRoomSuffix identifies the one room-booking tool whose input schema
// accepts user_info. Availability and cancellation tools reject the field.
const bookRoomSuffix = "_book_room"

// ForProviders returns the hook set keyed by provider name, as consumed by
// provider.LoadProviders.
func ForProviders() map[string]provider.Hook {
	return map[string]provider.Hook{
		"dish-mcp":        InjectRoomBooking,
		"google-calendar": InjectCalendar,
	}
}

// InjectRoomBooking injects the user's room-booking credentials.
//
// When the bag carries room credentials the session cookie is set on every
// call; team and member ids ride along as user_info only for the book-room
// action. Absent credentials mean a plain pass-through, never an error.
func InjectRoomBooking(ctx context.Context, next provider.CallFunc, name string, args map[string]any) (*provider.CallResult, error) {
	bag := credentials.FromContext(ctx)
	if bag.Room != nil {
		if args == nil {
			args = make(map[string]any)
		}
		args["cookie"] = bag.Room.Cookie
		if strings.HasSuffix(name, bookRoomSuffix) {
			args["user_info"] = map[string]any{
				"team_id":   bag.Room.TeamID,
				"member_id": bag.Room.MemberID,
			}
		}
	}
	return next(ctx, name, args, map[string]any{})
}

// InjectCalendar injects the user's Google Calendar OAuth tokens into every
// call under the calendar provider.
func InjectCalendar(ctx context.Context, next provider.CallFunc, name string, args map[string]any) (*provider.CallResult, error) {
	bag := credentials.FromContext(ctx)
	if bag.Calendar != nil {
		if args == nil {
			args = make(map[string]any)
		}
		args["oauth_credentials"] = map[string]any{
			"access_token":  bag.Calendar.AccessToken,
			"refresh_token": bag.Calendar.RefreshToken,
			"expiry_date":   bag.Calendar.ExpiryDate,
		}
	}
	return next(ctx, name, args, map[string]any{})
}

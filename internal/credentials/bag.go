// Package credentials carries per-request third-party credentials from the
// secret store to the tool-call injection hooks.
//
// A Bag is built fresh for every request from the caller's decrypted secrets,
// threaded explicitly through the run via the context carrier in context.go,
// and discarded when the run returns. Bags are immutable after construction
// and never shared across requests.
package credentials

import "strconv"

// Secret keys recognized when assembling a Bag.
const (
	SecretRoomCookie   = "DISH_COOKIE"
	SecretRoomTeamID   = "TEAM_ID"
	SecretRoomMemberID = "MEMBER_ID"

	SecretCalendarAccessToken  = "GOOGLE_CALENDAR_ACCESS_TOKEN"
	SecretCalendarRefreshToken = "GOOGLE_CALENDAR_REFRESH_TOKEN"
	SecretCalendarExpiryDate   = "GOOGLE_CALENDAR_EXPIRY_DATE"
)

// RoomBooking holds the room-booking service credentials for one user.
type RoomBooking struct {
	Cookie   string
	TeamID   string
	MemberID string
}

// CalendarTokens holds Google Calendar OAuth tokens for one user.
// ExpiryDate is epoch milliseconds, matching the calendar provider's wire
// format.
type CalendarTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiryDate   int64
}

// Bag is the per-invocation credential set. A nil field means the
// corresponding provider's hook performs no injection and the call proceeds
// unauthenticated.
type Bag struct {
	Room     *RoomBooking
	Calendar *CalendarTokens
}

// FromSecrets assembles a Bag from a user's decrypted secrets.
//
// Room-booking credentials require all three of cookie, team id and member
// id; a partial set is treated as absent. Calendar tokens require only the
// access token — a missing refresh token or expiry degrades gracefully
// (expiry falls back to zero).
func FromSecrets(secrets map[string]string) *Bag {
	bag := &Bag{}

	cookie := secrets[SecretRoomCookie]
	teamID := secrets[SecretRoomTeamID]
	memberID := secrets[SecretRoomMemberID]
	if cookie != "" && teamID != "" && memberID != "" {
		bag.Room = &RoomBooking{Cookie: cookie, TeamID: teamID, MemberID: memberID}
	}

	if access := secrets[SecretCalendarAccessToken]; access != "" {
		expiry, err := strconv.ParseInt(secrets[SecretCalendarExpiryDate], 10, 64)
		if err != nil {
			expiry = 0
		}
		bag.Calendar = &CalendarTokens{
			AccessToken:  access,
			RefreshToken: secrets[SecretCalendarRefreshToken],
			ExpiryDate:   expiry,
		}
	}

	return bag
}

package credentials

import (
	"context"
	"testing"
)

func TestFromSecretsFull(t *testing.T) {
	bag := FromSecrets(map[string]string{
		SecretRoomCookie:           "session-token",
		SecretRoomTeamID:           "team-1",
		SecretRoomMemberID:         "member-2",
		SecretCalendarAccessToken:  "ya29.token",
		SecretCalendarRefreshToken: "1//refresh",
		SecretCalendarExpiryDate:   "1736899200000",
	})

	if bag.Room == nil {
		t.Fatal("expected room credentials")
	}
	if bag.Room.Cookie != "session-token" || bag.Room.TeamID != "team-1" || bag.Room.MemberID != "member-2" {
		t.Errorf("unexpected room credentials: %+v", bag.Room)
	}
	if bag.Calendar == nil {
		t.Fatal("expected calendar tokens")
	}
	if bag.Calendar.AccessToken != "ya29.token" {
		t.Errorf("AccessToken = %q", bag.Calendar.AccessToken)
	}
	if bag.Calendar.ExpiryDate != 1736899200000 {
		t.Errorf("ExpiryDate = %d", bag.Calendar.ExpiryDate)
	}
}

func TestFromSecretsPartialRoom(t *testing.T) {
	// Room credentials are all-or-nothing.
	tests := []struct {
		name    string
		secrets map[string]string
	}{
		{"missing cookie", map[string]string{SecretRoomTeamID: "t", SecretRoomMemberID: "m"}},
		{"missing team", map[string]string{SecretRoomCookie: "c", SecretRoomMemberID: "m"}},
		{"missing member", map[string]string{SecretRoomCookie: "c", SecretRoomTeamID: "t"}},
		{"empty cookie", map[string]string{SecretRoomCookie: "", SecretRoomTeamID: "t", SecretRoomMemberID: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if bag := FromSecrets(tt.secrets); bag.Room != nil {
				t.Errorf("expected nil room credentials, got %+v", bag.Room)
			}
		})
	}
}

func TestFromSecretsCalendarDefaults(t *testing.T) {
	bag := FromSecrets(map[string]string{SecretCalendarAccessToken: "tok"})
	if bag.Calendar == nil {
		t.Fatal("expected calendar tokens from access token alone")
	}
	if bag.Calendar.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", bag.Calendar.RefreshToken)
	}
	if bag.Calendar.ExpiryDate != 0 {
		t.Errorf("ExpiryDate = %d, want 0", bag.Calendar.ExpiryDate)
	}

	bag = FromSecrets(map[string]string{
		SecretCalendarAccessToken: "tok",
		SecretCalendarExpiryDate:  "not a number",
	})
	if bag.Calendar.ExpiryDate != 0 {
		t.Errorf("ExpiryDate = %d, want 0 for unparseable input", bag.Calendar.ExpiryDate)
	}
}

func TestFromSecretsEmpty(t *testing.T) {
	bag := FromSecrets(map[string]string{})
	if bag.Room != nil || bag.Calendar != nil {
		t.Errorf("expected empty bag, got %+v", bag)
	}
}

func TestContextRoundTrip(t *testing.T) {
	bag := &Bag{Room: &RoomBooking{Cookie: "c", TeamID: "t", MemberID: "m"}}
	ctx := NewContext(context.Background(), bag)

	got := FromContext(ctx)
	if got != bag {
		t.Error("expected the same bag back from context")
	}
}

func TestFromContextMissing(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil {
		t.Fatal("expected non-nil empty bag")
	}
	if got.Room != nil || got.Calendar != nil {
		t.Errorf("expected empty bag, got %+v", got)
	}
}

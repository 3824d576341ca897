package gcal

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const clientSecrets = `{
  "web": {
    "client_id": "client-123.apps.googleusercontent.com",
    "client_secret": "secret-xyz",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost:3000/auth/google/callback"]
  }
}`

func TestNewOAuthAuthURL(t *testing.T) {
	o, err := NewOAuth([]byte(clientSecrets), "http://localhost:3000/auth/google/callback")
	if err != nil {
		t.Fatalf("NewOAuth() error = %v", err)
	}

	raw := o.AuthURL("user-42")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL() not a URL: %v", err)
	}

	q := parsed.Query()
	if q.Get("state") != "user-42" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("access_type") != "offline" {
		t.Errorf("access_type = %q", q.Get("access_type"))
	}
	if q.Get("prompt") != "consent" {
		t.Errorf("prompt = %q", q.Get("prompt"))
	}
	if !strings.Contains(q.Get("scope"), "auth/calendar") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "http://localhost:3000/auth/google/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestNewOAuthInvalidJSON(t *testing.T) {
	if _, err := NewOAuth([]byte(`{"nope":{}}`), ""); err == nil {
		t.Error("expected error for unrecognized client secrets format")
	}
}

func TestNewOAuthFromEnv(t *testing.T) {
	t.Setenv(credentialsEnv, "")
	if _, err := NewOAuthFromEnv(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}

	path := filepath.Join(t.TempDir(), "client_secrets.json")
	if err := os.WriteFile(path, []byte(clientSecrets), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(credentialsEnv, path)
	t.Setenv(redirectURIEnv, "https://example.com/cb")

	o, err := NewOAuthFromEnv()
	if err != nil {
		t.Fatalf("NewOAuthFromEnv() error = %v", err)
	}
	if !strings.Contains(o.AuthURL("s"), url.QueryEscape("https://example.com/cb")) {
		t.Error("redirect URI override not applied")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now().UnixMilli()
	tests := []struct {
		name     string
		expiryMS int64
		want     bool
	}{
		{"zero", 0, true},
		{"negative", -5, true},
		{"long past", now - 10_000, true},
		{"inside buffer", now + (2 * time.Minute).Milliseconds(), true},
		{"comfortably ahead", now + time.Hour.Milliseconds(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.expiryMS, 5*time.Minute); got != tt.want {
				t.Errorf("IsExpired(%d) = %v, want %v", tt.expiryMS, got, tt.want)
			}
		})
	}
}

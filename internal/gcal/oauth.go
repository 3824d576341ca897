// Package gcal implements the Google OAuth flow that provisions the
// calendar tokens later injected into calendar tool calls.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarScope grants full calendar access, matching what the calendar
// provider's tools need.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

const (
	credentialsEnv     = "GOOGLE_OAUTH_CREDENTIALS"
	redirectURIEnv     = "GOOGLE_OAUTH_REDIRECT_URI"
	defaultRedirectURI = "http://localhost:3000/auth/google/callback"
)

// ErrNotConfigured is returned when the client-secrets file is not set up.
var ErrNotConfigured = errors.New("gcal: GOOGLE_OAUTH_CREDENTIALS not set")

// Tokens is the OAuth token set stored as user secrets. ExpiryDate is a
// Unix timestamp in milliseconds, 0 when the provider reported none.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiryDate   int64
}

// OAuth wraps the oauth2 config built from a Google client-secrets file.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth parses a client-secrets JSON document ("web" or "installed"
// format) and applies the redirect URI.
func NewOAuth(clientSecretsJSON []byte, redirectURI string) (*OAuth, error) {
	config, err := google.ConfigFromJSON(clientSecretsJSON, CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: invalid client secrets: %w", err)
	}
	if redirectURI != "" {
		config.RedirectURL = redirectURI
	}
	return &OAuth{config: config}, nil
}

// NewOAuthFromEnv loads the client-secrets file named by
// GOOGLE_OAUTH_CREDENTIALS, with the redirect URI from
// GOOGLE_OAUTH_REDIRECT_URI or its localhost default.
func NewOAuthFromEnv() (*OAuth, error) {
	path := os.Getenv(credentialsEnv)
	if path == "" {
		return nil, ErrNotConfigured
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gcal: read client secrets: %w", err)
	}
	redirectURI := os.Getenv(redirectURIEnv)
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}
	return NewOAuth(data, redirectURI)
}

// AuthURL builds the authorization URL. Offline access plus a forced
// consent prompt ensures Google returns a refresh token; state carries the
// user ID for CSRF protection.
func (o *OAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades the callback's authorization code for a token set.
func (o *OAuth) Exchange(ctx context.Context, code string) (*Tokens, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gcal: failed to exchange code: %w", err)
	}
	return fromOAuth2Token(token), nil
}

// Refresh obtains a fresh access token from a stored refresh token.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	source := o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("gcal: failed to refresh token: %w", err)
	}
	tokens := fromOAuth2Token(token)
	// Google omits the refresh token on refresh responses; keep the one
	// we already have.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// IsExpired reports whether a token is expired or expires within the
// buffer. A zero or missing expiry counts as expired.
func IsExpired(expiryMS int64, buffer time.Duration) bool {
	if expiryMS <= 0 {
		return true
	}
	return time.Now().UnixMilli() >= expiryMS-buffer.Milliseconds()
}

func fromOAuth2Token(token *oauth2.Token) *Tokens {
	var expiryMS int64
	if !token.Expiry.IsZero() {
		expiryMS = token.Expiry.UnixMilli()
	}
	return &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiryDate:   expiryMS,
	}
}

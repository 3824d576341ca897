// Package auth issues and validates the bearer tokens that identify the
// principal behind each API call. The principal's subject scopes both the
// session keys and the secrets store.
package auth

import "errors"

var (
	// ErrAuthDisabled is returned when no signing secret is configured.
	ErrAuthDisabled = errors.New("auth disabled")

	// ErrInvalidToken is returned for malformed, expired, or mis-signed
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
)

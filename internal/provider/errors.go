package provider

import "errors"

var (
	// ErrConfig marks fatal registry configuration failures: missing file,
	// unparseable document, duplicate namespace prefix. Startup-time only,
	// never retried.
	ErrConfig = errors.New("provider config error")

	// ErrNotConnected is returned when a call is attempted against a
	// provider whose transport is down.
	ErrNotConnected = errors.New("provider not connected")

	// ErrToolNotFound is returned when no provider owns the requested tool.
	ErrToolNotFound = errors.New("tool not found")
)

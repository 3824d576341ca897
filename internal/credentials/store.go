package credentials

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a secret key does not exist for a user.
var ErrSecretNotFound = errors.New("secret not found")

// Store is the per-user secret CRUD contract. Values are opaque strings at
// this layer; encryption at rest is the implementation's concern.
type Store interface {
	// GetAll returns every decrypted secret for a user, keyed by name.
	GetAll(ctx context.Context, userID string) (map[string]string, error)

	// Get returns one decrypted secret, or ErrSecretNotFound.
	Get(ctx context.Context, userID, key string) (string, error)

	// Set stores or overwrites a secret.
	Set(ctx context.Context, userID, key, value string) error

	// Delete removes a secret, returning ErrSecretNotFound if absent.
	Delete(ctx context.Context, userID, key string) error

	// ListKeys returns the secret key names for a user, values excluded.
	ListKeys(ctx context.Context, userID string) ([]string, error)
}

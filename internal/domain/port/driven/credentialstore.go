package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// CALSYNC_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set CALSYNC_SECRET_KEY")

// CredentialStore defines the driven port for encrypted secret persistence.
// Values are opaque bytes; the adapter is responsible for encryption.
type CredentialStore interface {
	// Set stores or replaces the value for key.
	// Returns ErrEncryptionKeyNotSet if the adapter has no encryption key.
	Set(ctx context.Context, key string, value []byte) error

	// Get returns the value for key, or (nil, nil) if none is stored.
	// Returns ErrEncryptionKeyNotSet if the adapter has no encryption key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the value for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Generation returns a counter that every successful Set, and every
	// Delete that removed a value, advances by exactly one. It is shared by
	// all processes using the same store.
	Generation(ctx context.Context) (int64, error)
}

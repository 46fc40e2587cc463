package driven

import "context"

// SettingsStore persists small serialized blobs by key: the account list,
// per-account calendar overrides and the view state.
type SettingsStore interface {
	// Get returns the blob for key, or (nil, nil) if none is stored.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

package storage

import "context"

// KV is the durable key-value boundary. Get reports absence with ok=false
// and a nil error; every caller must tolerate a fresh, empty store.
type KV interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

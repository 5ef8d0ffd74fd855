// Package cache stores rendered frames between runs.
//
// A render is a pure function of the template, the source frame, the
// runtime variables and the output options, so its encoded result can be
// reused whenever all four match. [Keyer] turns those inputs into a key;
// [Cache] backends hold the bytes:
//
//   - [FileCache]: one file per entry under the user cache directory
//   - [RedisCache]: a shared redis instance for render farms
//   - [NullCache]: caching disabled
//
// [Instrument] wraps any backend to report hits and misses through the
// observability hooks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Clear empties c if the backend supports it and reports whether it did.
func Clear(ctx context.Context, c Cache) (bool, error) {
	cl, ok := c.(Clearer)
	if !ok {
		return false, nil
	}
	return true, cl.Clear(ctx)
}

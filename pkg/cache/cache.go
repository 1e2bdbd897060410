// Package cache stores detector output per file so unchanged files are not
// parsed again on the next scan.
//
// Entries are opaque byte slices. Keys come from a [Keyer] and cover
// everything a detector's output depends on: its id and version, the file
// name, the matched pattern, its arguments and the file content.
//
// Implementations:
//   - [NullCache]: stores nothing
//   - [MemoryCache]: bounded in-process LRU with expiry
//   - [FileCache]: zstd-compressed files under a directory, for the CLI
//   - [RedisCache]: shared between processes, for the server
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long detector output stays cached when the caller does
// not say otherwise.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value and whether it was found. A missing or expired
	// entry is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Clear empties c when it supports clearing and reports whether it did.
func Clear(ctx context.Context, c Cache) (bool, error) {
	cl, ok := c.(Clearer)
	if !ok {
		return false, nil
	}
	return true, cl.Clear(ctx)
}

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryEntries bounds a MemoryCache created with size zero.
const DefaultMemoryEntries = 4096

// MemoryCache is a bounded in-process cache. The LRU evicts by size and by
// maxAge; per-entry TTLs passed to Set are enforced on read.
type MemoryCache struct {
	lru    *expirable.LRU[string, memoryEntry]
	closed atomic.Bool
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most size entries, each for at
// most maxAge. Zero values select DefaultMemoryEntries and DefaultTTL.
func NewMemoryCache(size int, maxAge time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, memoryEntry](size, nil, maxAge)}
}

// Get implements [Cache].
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set implements [Cache]. The data slice is copied.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

// Delete implements [Cache].
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear implements [Clearer].
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Close implements [Cache]. It drops every entry; later reads and writes
// fail with [ErrClosed].
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.lru.Purge()
	}
	return nil
}

var (
	_ Cache   = (*MemoryCache)(nil)
	_ Clearer = (*MemoryCache)(nil)
)

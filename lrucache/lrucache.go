// Package lrucache implements the subroot cache described in spec section
// 4.4: a thread-safe LRU keyed by (offset, width), evicted by total bytes
// stored rather than by entry count.
//
// hashicorp/golang-lru's simplelru.LRU evicts by entry count, not by the
// bytes each entry occupies, so it cannot enforce a byte capacity on its
// own. This package wraps it with an unbounded entry count and instead
// tracks total byte usage itself, calling RemoveOldest in a loop until
// usage falls back under capacity after every insert — the same role
// cachetools.LRUCache(getsizeof=len) plays in the original implementation.
package lrucache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"
)

// Key identifies a perfect subtree by its leftmost leaf offset and its
// width (a power of two).
type Key struct {
	Offset uint64
	Width  uint64
}

// Stats mirrors the spec's CacheInfo: current and maximum byte usage, plus
// cumulative hit/miss counters since construction or the last Clear.
type Stats struct {
	SizeBytes     int64
	CapacityBytes int64
	Hits          uint64
	Misses        uint64
}

// Cache is a byte-bounded, thread-safe LRU of subroot digests.
type Cache struct {
	mu        sync.Mutex
	inner     *lru.LRU[Key, []byte]
	capacity  int64
	sizeBytes int64
	hits      uint64
	misses    uint64
	logger    *zap.SugaredLogger
}

// New returns a Cache that evicts least-recently-used entries once the sum
// of stored digest lengths exceeds capacity bytes. A nil logger disables
// logging.
func New(capacity int64, logger *zap.SugaredLogger) *Cache {
	c := &Cache{capacity: capacity, logger: logger}
	// onEvict keeps sizeBytes in sync whenever simplelru evicts on our
	// behalf (only ever triggered by our own RemoveOldest and Purge calls
	// below, since the inner LRU has no count-based capacity of its own).
	inner, err := lru.NewLRU[Key, []byte](maxInt, func(_ Key, value []byte) {
		c.sizeBytes -= int64(len(value))
	})
	if err != nil {
		// Only returns an error for a non-positive size, which maxInt
		// never is.
		panic(err)
	}
	c.inner = inner
	return c
}

const maxInt = int(^uint(0) >> 1)

// GetOrCompute returns the cached digest for (offset, width), computing and
// storing it via compute on a miss. Per spec section 4.4, callers are
// expected to bypass the cache entirely for widths below the configured
// threshold; this type has no opinion on that policy.
func (c *Cache) GetOrCompute(offset, width uint64, compute func() ([]byte, error)) ([]byte, error) {
	key := Key{Offset: offset, Width: width}

	c.mu.Lock()
	if value, ok := c.inner.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return value, nil
	}
	c.misses++
	c.mu.Unlock()

	value, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have raced us to compute the same key; last
	// writer wins, which is safe since both computed the same digest (I5).
	// Replacing an entry does not fire onEvict, so drop its bytes here.
	if prev, ok := c.inner.Peek(key); ok {
		c.sizeBytes -= int64(len(prev))
	}
	c.inner.Add(key, value)
	c.sizeBytes += int64(len(value))

	for c.sizeBytes > c.capacity && c.inner.Len() > 0 {
		evictedKey, evictedValue, ok := c.inner.RemoveOldest()
		if !ok {
			break
		}
		if c.logger != nil {
			c.logger.Debugw("subroot cache eviction",
				"offset", evictedKey.Offset, "width", evictedKey.Width, "bytes", len(evictedValue))
		}
	}

	return value, nil
}

// Stats returns a snapshot of the cache's current usage and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		SizeBytes:     c.sizeBytes,
		CapacityBytes: c.capacity,
		Hits:          c.hits,
		Misses:        c.misses,
	}
}

// Clear empties the cache and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
	c.sizeBytes = 0
	c.hits = 0
	c.misses = 0
}

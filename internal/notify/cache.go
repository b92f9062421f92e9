package notify

import (
	"sync"
	"time"

	"github.com/projekportal/notifier/internal/clock"
)

// Cache holds a single value with a fetch timestamp and a TTL. Concurrent
// refreshes are allowed to race; the last writer wins and both results are
// equally valid snapshots.
type Cache[T any] struct {
	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	ttl       time.Duration
	clock     clock.Clock
}

// NewCache returns an empty cache with the given TTL.
func NewCache[T any](ttl time.Duration, clk clock.Clock) *Cache[T] {
	return &Cache[T]{ttl: ttl, clock: clk}
}

// Get returns the cached value and true when a value is present and younger
// than the TTL.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchedAt.IsZero() || c.clock.Now().Sub(c.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Put overwrites the cached value unconditionally and stamps it with the
// current time.
func (c *Cache[T]) Put(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.clock.Now()
}

// Package cache provides a simple in-memory cache with per-entry TTL.
// It backs the token cache and the monthly statement view in a single
// process; the Redis adapter covers multi-instance deployments.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with per-entry TTL.
type InMemory[T any] struct {
	mu       sync.RWMutex
	items    map[string]entry[T]
	sweepGap time.Duration
}

// New creates an in-memory cache. sweepGap controls how often expired
// entries are physically removed; reads never return expired values
// regardless.
func New[T any](sweepGap time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items:    make(map[string]entry[T]),
		sweepGap: sweepGap,
	}
	go c.sweep()
	return c
}

// Get retrieves a value. Returns false if absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value for the given TTL, overwriting any prior entry.
func (c *InMemory[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a value.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear empties the whole cache.
func (c *InMemory[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]entry[T])
}

// sweep periodically removes expired entries.
func (c *InMemory[T]) sweep() {
	ticker := time.NewTicker(c.sweepGap)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process TokenCache used in tests and in deployments
// that run without Redis. Expiry is checked lazily on Get.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, hash string) (*Entry, error) {
	c.mu.RLock()
	stored, ok := c.entries[hash]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(stored.expiresAt) {
		c.mu.Lock()
		delete(c.entries, hash)
		c.mu.Unlock()
		return nil, nil
	}
	entry := stored.entry
	return &entry, nil
}

func (c *MemoryCache) Set(_ context.Context, hash string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[hash] = memoryEntry{entry: *entry, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, hash string) error {
	c.mu.Lock()
	delete(c.entries, hash)
	c.mu.Unlock()
	return nil
}

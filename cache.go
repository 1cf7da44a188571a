package main

import (
	"sync"
	"time"
)

type cacheEntry struct {
	content   string
	updatedAt time.Time
}

// ContextCache is a thread-safe TTL cache for fetched prompt context, keyed by URL
type ContextCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewContextCache creates a new context cache with the specified TTL
func NewContextCache(ttl time.Duration) *ContextCache {
	return &ContextCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves the content for url if present and not expired.
// Returns the content and a boolean indicating if the cache hit was successful.
func (c *ContextCache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok || time.Since(entry.updatedAt) > c.ttl {
		return "", false
	}
	return entry.content, true
}

// Set stores content for url
func (c *ContextCache) Set(url, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = cacheEntry{content: content, updatedAt: time.Now()}
}

// Clear removes every entry from the cache and returns how many there were
func (c *ContextCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	return n
}

// GetLastUpdated returns when url was last stored, or the zero time
func (c *ContextCache) GetLastUpdated(url string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[url].updatedAt
}

// IsExpired reports whether url is missing or older than the TTL
func (c *ContextCache) IsExpired(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok {
		return true
	}
	return time.Since(entry.updatedAt) > c.ttl
}

// GetSize returns the number of cached URLs, expired ones included
func (c *ContextCache) GetSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

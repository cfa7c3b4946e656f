package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type sessionEntry struct {
	code      string
	expiresAt time.Time
}

// InMemorySessionCache implements SessionCache with a map. Suitable for
// single-instance deployments and testing. Expired entries are dropped
// lazily on read.
type InMemorySessionCache struct {
	mu      sync.RWMutex
	entries map[string]sessionEntry
}

// NewInMemorySessionCache creates an empty in-memory session cache
func NewInMemorySessionCache() *InMemorySessionCache {
	return &InMemorySessionCache{
		entries: make(map[string]sessionEntry),
	}
}

// Get returns the cached session code, or false when none is cached
func (c *InMemorySessionCache) Get(ctx context.Context, tenantID uuid.UUID, channel string) (string, bool, error) {
	key := sessionKey(tenantID, channel)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.code, true, nil
}

// Set stores a session code with a TTL
func (c *InMemorySessionCache) Set(ctx context.Context, tenantID uuid.UUID, channel, sessionCode string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionKey(tenantID, channel)] = sessionEntry{
		code:      sessionCode,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete evicts a session
func (c *InMemorySessionCache) Delete(ctx context.Context, tenantID uuid.UUID, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionKey(tenantID, channel))
	return nil
}

// Ensure InMemorySessionCache implements SessionCache
var _ SessionCache = (*InMemorySessionCache)(nil)

package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ProfileMissCache remembers usernames that resolved to no public profile so
// repeated lookups skip the database until the entry expires or is forgotten.
type ProfileMissCache interface {
	IsMissing(ctx context.Context, username string) (bool, error)
	MarkMissing(ctx context.Context, username string, ttl time.Duration) error
	Forget(ctx context.Context, username string) error
}

type NoopProfileMissCache struct{}

func NewNoopProfileMissCache() *NoopProfileMissCache { return &NoopProfileMissCache{} }

func (NoopProfileMissCache) IsMissing(context.Context, string) (bool, error) { return false, nil }

func (NoopProfileMissCache) MarkMissing(context.Context, string, time.Duration) error { return nil }

func (NoopProfileMissCache) Forget(context.Context, string) error { return nil }

type InMemoryProfileMissCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryProfileMissCache() *InMemoryProfileMissCache {
	return &InMemoryProfileMissCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (c *InMemoryProfileMissCache) IsMissing(_ context.Context, username string) (bool, error) {
	key := normalizeCacheKey(username)
	c.mu.RLock()
	expiresAt, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if c.now().After(expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryProfileMissCache) MarkMissing(_ context.Context, username string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeCacheKey(username)] = c.now().Add(ttl)
	return nil
}

func (c *InMemoryProfileMissCache) Forget(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeCacheKey(username))
	return nil
}

func normalizeCacheKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

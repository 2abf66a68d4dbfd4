package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdtech/hackathon/pkg/logger"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// TTLCache is an in-memory cache with per-entry expiry
// ⭐ SSOT: in-process caching lives in this struct only
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	logger  *logger.Logger
}

// NewTTLCache creates an empty cache
func NewTTLCache(log *logger.Logger) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  log.Component("ttl_cache"),
	}
}

// Get decodes the entry for key into dest. Expired entries are misses.
func (c *TTLCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores value under key for ttl
func (c *TTLCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{data: data, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete removes keys
func (c *TTLCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix
func (c *TTLCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			count++
		}
	}
	return count, nil
}

// Flush clears the cache
func (c *TTLCache) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.logger.WithField("count", n).Info("Cleared cache")
	return n, nil
}

// Len returns the number of entries, expired ones included
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// CleanExpired removes expired entries
func (c *TTLCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Debug("Cleaned expired cache entries")
	}
	return count
}

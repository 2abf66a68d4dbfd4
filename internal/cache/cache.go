package cache

import (
	"context"
	"time"

	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
	"github.com/gdtech/hackathon/pkg/redis"
)

// Cache is the read-through cache shared by the aggregation and investor paths.
// Values round-trip through JSON on every backend, so callers never share
// memory with a cached entry.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Flush(ctx context.Context) (int, error)
}

var (
	_ Cache = (*redis.Cache)(nil)
	_ Cache = (*TTLCache)(nil)
)

// New returns the Redis-backed cache when Redis is enabled, else an in-process one
func New(cfg *config.Config, client *redis.Client, log *logger.Logger) Cache {
	if client != nil && client.Enabled() {
		log.Component("cache").Info("Using redis cache")
		return redis.NewCache(client, cfg.Redis.Prefix)
	}
	log.Component("cache").Info("Using in-process cache")
	return NewTTLCache(log)
}

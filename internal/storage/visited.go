package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultVisitedTTL is how long a product URL is considered recently crawled.
const defaultVisitedTTL = 24 * time.Hour

// RedisConfig holds redis connection configuration.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// VisitedCache records recently crawled product URLs in redis so repeated
// crawl sessions can skip pages that were resolved within the TTL. This is
// cross-session dedup at the fetch layer; single-session dedup is the
// scheduler's fingerprint set.
type VisitedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVisitedCache creates a visited cache.
func NewVisitedCache(cfg RedisConfig) *VisitedCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultVisitedTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &VisitedCache{client: client, ttl: ttl}
}

// Ping verifies the redis connection.
func (c *VisitedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// MarkVisited records a URL as crawled for the configured TTL.
func (c *VisitedCache) MarkVisited(ctx context.Context, url string) error {
	return c.client.Set(ctx, visitedKey(url), "1", c.ttl).Err()
}

// WasVisited reports whether a URL was crawled within the TTL.
func (c *VisitedCache) WasVisited(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, visitedKey(url)).Result()
	if err != nil {
		return false, fmt.Errorf("check visited %s: %w", url, err)
	}

	return n == 1, nil
}

// Close releases the redis connection.
func (c *VisitedCache) Close() error {
	return c.client.Close()
}

func visitedKey(url string) string {
	return "visited:" + url
}

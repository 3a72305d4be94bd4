// Package uploadcache remembers which public URL a source image was already
// re-hosted at, so broker redeliveries do not upload the same image twice.
package uploadcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisCache is a Redis-backed source → URL cache
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects and pings Redis
func NewRedisCache(ctx context.Context, config *Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    config.TTL,
		prefix: config.KeyPrefix,
	}, nil
}

func (c *RedisCache) key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached URL for source, if any
func (c *RedisCache) Get(ctx context.Context, source string) (string, bool, error) {
	url, err := c.client.Get(ctx, c.key(source)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("upload cache get: %w", err)
	}
	return url, true, nil
}

// Set stores url for source with the configured TTL
func (c *RedisCache) Set(ctx context.Context, source, url string) error {
	if err := c.client.Set(ctx, c.key(source), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("upload cache set: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

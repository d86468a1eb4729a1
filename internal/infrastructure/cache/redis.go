// Package cache provides the Redis-backed response cache used by the feed
// query service. The cache is a latency optimization only: every error path
// degrades to a miss so correctness never depends on Redis being up.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Config holds Redis connection settings.
type Config struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	KeyPrefix  string        `yaml:"key_prefix"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		KeyPrefix:  "hunter:",
		DefaultTTL: 60 * time.Second,
	}
}

// RedisCache wraps a Redis client with key prefixing and fail-open reads
// and writes.
type RedisCache struct {
	client    redis.Cmdable
	keyPrefix string
	log       zerolog.Logger
}

// NewRedisCache connects a cache to a Redis instance.
func NewRedisCache(config Config, log zerolog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
		log:       log.With().Str("component", "cache").Logger(),
	}
}

// NewWithClient builds a cache on an existing client, used by tests.
func NewWithClient(client redis.Cmdable, keyPrefix string, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix, log: log}
}

// Get returns the cached payload for key, or false on miss. Errors other
// than a plain miss are logged and reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

// Set stores a payload with the given TTL. Failures are logged and
// swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Del removes a key. Failures are logged and swallowed.
func (c *RedisCache) Del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// Health pings Redis, for readiness reporting.
func (c *RedisCache) Health(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

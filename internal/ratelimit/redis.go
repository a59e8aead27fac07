// ABOUTME: Redis-backed Counter so admission limits hold across gateway instances
// ABOUTME: Uses INCR plus PEXPIRE in one pipeline per admission

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig for the Redis counter. Defaults can be loaded via envdecode.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: RATE_LIMIT_KEY_PREFIX
	KeyPrefix string `env:"RATE_LIMIT_KEY_PREFIX,default=punch:ratelimit:"`
}

// RedisCounter counts admissions in Redis
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCounter connects to Redis and verifies the connection with PING.
func NewRedisCounter(ctx context.Context, cfg RedisConfig) (*RedisCounter, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "punch:ratelimit:"
	}
	return &RedisCounter{client: cl, keyPrefix: prefix}, nil
}

// RedisConfigFromEnv reads RedisConfig from the environment, falling back to
// the tag defaults for unset variables.
func RedisConfigFromEnv() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return RedisConfig{}, fmt.Errorf("decoding redis env: %w", err)
	}
	return cfg, nil
}

// NewRedisCounterFromEnv builds a RedisCounter from RedisConfigFromEnv.
func NewRedisCounterFromEnv(ctx context.Context) (*RedisCounter, error) {
	cfg, err := RedisConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewRedisCounter(ctx, cfg)
}

func (c *RedisCounter) windowKey(key string, windowStart time.Time) string {
	return c.keyPrefix + key + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// Incr increments the window count and refreshes its expiry.
func (c *RedisCounter) Incr(ctx context.Context, key string, windowStart time.Time, ttl time.Duration) (int64, error) {
	k := c.windowKey(key, windowStart)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val(), nil
}

// Close closes the Redis client.
func (c *RedisCounter) Close() error { return c.client.Close() }

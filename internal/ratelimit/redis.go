package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window counter shared between instances:
// INCR the key, set its TTL on first increment, reject above the limit
type RedisLimiter struct {
	client *redis.Client
	prefix string
	cfg    Config
}

func NewRedis(client *redis.Client, prefix string, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		cfg:    cfg,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	fullKey := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return fmt.Errorf("rate limit backend unavailable: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, fullKey, l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("rate limit backend unavailable: %w", err)
		}
	}

	if count > int64(l.cfg.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

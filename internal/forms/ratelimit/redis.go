package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "twym:form-submissions:"

// RedisCounter shares the daily counts across nodes. Keys carry the local
// date and expire shortly after the day ends.
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Count(ctx context.Context, ip string) (int, error) {
	n, err := c.client.Get(ctx, keyPrefix+dayKey(ctx, ip)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get submission count: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Record(ctx context.Context, ip string) error {
	key := keyPrefix + dayKey(ctx, ip)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment submission count: %w", err)
	}
	if n == 1 {
		// Key expiry only needs to outlive the day it names.
		if err := c.client.Expire(ctx, key, untilNextLocalMidnight(ctx)).Err(); err != nil {
			return fmt.Errorf("set submission count expiry: %w", err)
		}
	}
	return nil
}

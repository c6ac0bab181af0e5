package cache

import (
	"context"
	"time"

	"github.com/geocoder89/authhub/internal/redisclient"
)

// Redis is the shared-cache variant, used when REDIS_ADDR is configured so
// multiple instances see the same profile entries.
type Redis struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedis(client *redisclient.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Raw().Get(ctx, key).Bytes()

	if err != nil {
		// redis.Nil and transport errors both read as a miss
		return nil, false
	}

	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) {
	// best effort; the store stays authoritative
	_ = c.client.Raw().Set(ctx, key, val, c.ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) {
	_ = c.client.Raw().Del(ctx, key).Err()
}

package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client used for admission.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis implements Deduper with SETNX so several service replicas share
// one admission set.
type Redis struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed deduper.
func NewRedis(client RedisClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: "fleetready:seen:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SeenAndRecord implements Deduper.
func (r *Redis) SeenAndRecord(ctx context.Context, id string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	set, err := r.client.SetNX(ctx, r.prefix+id, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return !set, nil
}

// Unrecord implements Deduper.
func (r *Redis) Unrecord(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in redis. Each window gets its own key that
// expires when the window resets, so Sweep has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Increment(ctx context.Context, key string, windowResetAt, _ time.Time) (Entry, error) {
	windowKey := key + ":" + strconv.FormatInt(windowResetAt.UnixMilli(), 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.PExpireAt(ctx, windowKey, windowResetAt)
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("redis increment %s: %w", key, err)
	}

	return Entry{Key: key, Count: int(incr.Val()), WindowResetAt: windowResetAt}, nil
}

func (r *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

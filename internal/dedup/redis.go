package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis operations the index needs (narrowed
// for testing).
type RedisClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
}

// RedisIndex keeps the identity index in a Redis set, so dedup state
// survives across runs and can be shared by concurrent scraper instances.
// SADD is atomic, which preserves the no-two-live-entries invariant.
type RedisIndex struct {
	client RedisClient
	key    string
}

func NewRedisIndex(client RedisClient, key string) *RedisIndex {
	if key == "" {
		key = "scraper:identity"
	}
	return &RedisIndex{client: client, key: key}
}

func (r *RedisIndex) Add(ctx context.Context, member string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, member).Result()
	if err != nil {
		return false, fmt.Errorf("index add: %w", err)
	}
	return added == 1, nil
}

func (r *RedisIndex) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("index len: %w", err)
	}
	return int(n), nil
}

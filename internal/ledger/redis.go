package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient interface for the set operations the ledger needs (for testing)
type RedisClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
}

// Redis keeps the ledger in a Redis set so it survives restarts.
type Redis struct {
	client RedisClient
	key    string
}

func NewRedis(client RedisClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

// AddIfAbsent relies on SADD returning the number of members actually added,
// which makes the check and the insert a single atomic operation.
func (r *Redis) AddIfAbsent(ctx context.Context, id string) (bool, error) {
	n, err := r.client.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add %s to ledger: %w", id, err)
	}
	return n == 1, nil
}

func (r *Redis) Contains(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return ok, nil
}

func (r *Redis) Len(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger: %w", err)
	}
	return n, nil
}

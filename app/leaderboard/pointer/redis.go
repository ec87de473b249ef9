package pointer

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leaderboard:pointer:"

// RedisStore keeps pointers as JSON strings in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, scope string) (*Pointer, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+scope).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pointer for scope '%s': %w", scope, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, scope string, p Pointer) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+scope, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write pointer for scope '%s': %w", scope, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+scope).Err(); err != nil {
		return fmt.Errorf("failed to delete pointer for scope '%s': %w", scope, err)
	}
	return nil
}

// Close is a no-op; the Redis client is shared and owned by the caller.
func (s *RedisStore) Close() error { return nil }

package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

// SetIndexed writes key and adds member to the index set in one transaction.
func (s *Store) SetIndexed(ctx context.Context, key string, value interface{}, expiration time.Duration, indexKey string, member string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, expiration)
		pipe.SAdd(ctx, indexKey, member)
		return nil
	})
	return err
}

func (s *Store) SetMembers(ctx context.Context, indexKey string) ([]string, error) {
	return s.client.SMembers(ctx, indexKey).Result()
}

func (s *Store) SetRemove(ctx context.Context, indexKey string, members ...interface{}) error {
	return s.client.SRem(ctx, indexKey, members...).Err()
}

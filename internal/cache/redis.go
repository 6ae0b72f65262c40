package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore and verifies connectivity.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("cache: nil redis client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errPing := client.Ping(ctx).Err(); errPing != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", errPing)
	}
	return &RedisStore{client: client}, nil
}

// Get returns the value stored under key, or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if errSet := s.client.Set(ctx, key, value, ttl).Err(); errSet != nil {
		return fmt.Errorf("cache: set %s: %w", key, errSet)
	}
	return nil
}

// Delete removes the given keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if errDel := s.client.Del(ctx, keys...).Err(); errDel != nil {
		return fmt.Errorf("cache: delete: %w", errDel)
	}
	return nil
}

// DeletePattern scans for keys matching pattern and removes them in batches.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if errDel := s.Delete(ctx, batch...); errDel != nil {
				return errDel
			}
			batch = batch[:0]
		}
	}
	if errIter := iter.Err(); errIter != nil {
		return fmt.Errorf("cache: scan %s: %w", pattern, errIter)
	}
	return s.Delete(ctx, batch...)
}

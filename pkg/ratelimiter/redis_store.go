package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces limiter keys in Redis.
const DefaultKeyPrefix = "ratelimit:"

// RedisStore is a Store shared by all API instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix selects DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Increment(ctx context.Context, key string, n int, window time.Duration) (int64, time.Duration, error) {
	key = s.prefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.IncrBy(ctx, key, int64(n))
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	count, ttl := incr.Val(), pttl.Val()
	// A key without expiry was just created, or lost its TTL.
	if ttl < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, errors.Join(ErrStoreUnavailable, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

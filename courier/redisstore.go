package courier

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a durable Store backed by Redis, letting multiple
// processes share one response cache. Entries are stored as JSON under a
// configurable key prefix.
type RedisStore struct {
	client redis.UniversalClient
	prefix string

	// maxAge, when positive, is set as the Redis TTL on every write so
	// stale entries age out of Redis on their own. Freshness is still
	// judged by the reader; this is housekeeping only.
	maxAge time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Defaults to "courier:cache:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisMaxAge sets a Redis-side expiry on stored entries.
func WithRedisMaxAge(maxAge time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.maxAge = maxAge
	}
}

// NewRedisStore wraps an existing Redis client. The store does not own
// the client; closing it is the caller's responsibility.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "courier:cache:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Has implements Store.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*CacheEntry, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, data, s.maxAge).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV implements cache.KV on top of a Redis client. All keys are prefixed so
// several deployments can share one instance.
type KV struct {
	client redis.UniversalClient
	prefix string
}

// NewKV wraps client. An empty prefix writes keys verbatim.
func NewKV(client redis.UniversalClient, prefix string) *KV {
	return &KV{client: client, prefix: prefix}
}

// Get returns the value of key; a missing key is not an error.
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value. A zero ttl keeps the key without expiration.
func (s *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

// Delete removes keys.
func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.prefix+k)
		}
	}
	if len(full) == 0 {
		return nil
	}
	return s.client.Del(ctx, full...).Err()
}

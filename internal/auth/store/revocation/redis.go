package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "luwei:revoked:jti:"

// RedisStore keeps denials as keys that expire on their own, so instances
// share revocation state without a purge job.
type RedisStore struct {
	client   *redis.Client
	observer LatencyObserver
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisObserver records lookup latency.
func WithRedisObserver(o LatencyObserver) RedisOption {
	return func(s *RedisStore) {
		s.observer = o
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RevokeToken denies jti for ttl.
func (s *RedisStore) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

// IsTokenRevoked reports whether a denial key exists for jti.
func (s *RedisStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveRevocationCheck(time.Since(start))
		}
	}()

	if jti == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, revokedKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Window      time.Duration
	MaxRequests int
	// FailClosed rejects traffic when Redis is unreachable. Default false:
	// a limiter outage admits requests rather than taking the whole
	// authentication surface down with it.
	FailClosed bool
	KeyPrefix  string
}

// Limiter enforces a fixed-window request cap per identifier using
// Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow counts one request against the scope+key window. Returns
// [ErrRateLimited] when the cap is exceeded. Backend failures follow the
// configured open/closed policy.
func (l *Limiter) Allow(ctx context.Context, scope, key string) error {
	count, err := l.incrementWithTTL(ctx, l.key(scope, key), l.config.Window)
	if err != nil {
		if l.config.FailClosed {
			return err
		}
		return nil
	}
	if count > int64(l.config.MaxRequests) {
		return ErrRateLimited
	}

	return nil
}

// Reset clears the window for scope+key. Called after a successful
// verification so legitimate retries are not charged.
func (l *Limiter) Reset(ctx context.Context, scope, key string) error {
	if err := l.redis.Del(ctx, l.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (l *Limiter) key(scope, key string) string {
	return l.config.KeyPrefix + ":" + scope + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

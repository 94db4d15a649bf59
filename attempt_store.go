package lockgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptKeyPrefix = "pfc"
	lockKeyPrefix    = "plk"
)

var errAttemptRedisUnavailable = errors.New("attempt store redis unavailable")

// pinAttemptStore tracks consecutive PIN failures per account and the
// resulting lockout window. State is keyed per account in Redis so multiple
// engine instances observe the same counters; nothing lives in process
// memory.
type pinAttemptStore struct {
	redis        *redis.Client
	prefix       string
	maxFailures  int
	lockDuration time.Duration
}

func newPINAttemptStore(redisClient *redis.Client, keyPrefix string, cfg PINConfig) *pinAttemptStore {
	return &pinAttemptStore{
		redis:        redisClient,
		prefix:       keyPrefix,
		maxFailures:  cfg.MaxFailures,
		lockDuration: cfg.LockDuration,
	}
}

func (s *pinAttemptStore) attemptKey(userID string) string {
	return s.prefix + ":" + attemptKeyPrefix + ":" + userID
}

func (s *pinAttemptStore) lockKey(userID string) string {
	return s.prefix + ":" + lockKeyPrefix + ":" + userID
}

// LockRemaining returns the remaining lockout window, or zero when the
// account is not locked.
func (s *pinAttemptStore) LockRemaining(ctx context.Context, userID string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, s.lockKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errAttemptRedisUnavailable, err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordFailure counts one failed attempt. On the configured consecutive
// failure the account is locked for the lock duration and the counter is
// cleared so the next window starts fresh. Returns attempts remaining and
// whether this failure tripped the lock.
func (s *pinAttemptStore) RecordFailure(ctx context.Context, userID string) (remaining int, locked bool, err error) {
	count, err := s.redis.Incr(ctx, s.attemptKey(userID)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", errAttemptRedisUnavailable, err)
	}
	if count == 1 {
		// Failure counters self-expire with the lock window so stale
		// failures from hours ago never contribute to a lockout.
		if err := s.redis.Expire(ctx, s.attemptKey(userID), s.lockDuration).Err(); err != nil {
			return 0, false, fmt.Errorf("%w: %v", errAttemptRedisUnavailable, err)
		}
	}

	if int(count) >= s.maxFailures {
		pipe := s.redis.TxPipeline()
		pipe.Set(ctx, s.lockKey(userID), 1, s.lockDuration)
		pipe.Del(ctx, s.attemptKey(userID))
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, false, fmt.Errorf("%w: %v", errAttemptRedisUnavailable, err)
		}
		return 0, true, nil
	}

	return s.maxFailures - int(count), false, nil
}

// Reset clears the failure counter after a successful verification.
func (s *pinAttemptStore) Reset(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.attemptKey(userID), s.lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errAttemptRedisUnavailable, err)
	}
	return nil
}

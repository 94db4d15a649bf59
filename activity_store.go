package lockgate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activityKeyPrefix = "act"
	proofKeyPrefix    = "ulp"
)

var (
	errActivityNotFound         = errors.New("session activity not found")
	errActivityRedisUnavailable = errors.New("session activity redis unavailable")
)

// sessionActivityStore records lastActivityAt per user. The timestamp is
// mutated only on successful unlocks and cold logins; status reads never
// touch it unless the computed tier is none.
type sessionActivityStore struct {
	redis       *redis.Client
	prefix      string
	proofPrefix string
	maxIdle     time.Duration
}

func newSessionActivityStore(redisClient *redis.Client, keyPrefix string, maxIdle time.Duration) *sessionActivityStore {
	return &sessionActivityStore{
		redis:       redisClient,
		prefix:      keyPrefix + ":" + activityKeyPrefix,
		proofPrefix: keyPrefix + ":" + proofKeyPrefix,
		maxIdle:     maxIdle,
	}
}

func (s *sessionActivityStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *sessionActivityStore) proofKey(userID, factor string) string {
	return s.proofPrefix + ":" + userID + ":" + factor
}

// Touch sets lastActivityAt to now.
func (s *sessionActivityStore) Touch(ctx context.Context, userID string, now time.Time) error {
	value := strconv.FormatInt(now.Unix(), 10)
	if err := s.redis.Set(ctx, s.key(userID), value, s.maxIdle).Err(); err != nil {
		return fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}
	return nil
}

// LastActivity returns the recorded timestamp. A missing record (expired or
// never written) reports errActivityNotFound; callers treat that as maximal
// idle.
func (s *sessionActivityStore) LastActivity(ctx context.Context, userID string) (time.Time, error) {
	value, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, errActivityNotFound
		}
		return time.Time{}, fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}

	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, errActivityNotFound
	}

	return time.Unix(unix, 0), nil
}

// Clear removes the activity record, forcing the next status check into the
// full-login tier.
func (s *sessionActivityStore) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}
	return nil
}

// MarkFactorProof records a satisfied factor while a multi-factor tier
// waits for the rest. Proofs self-expire.
func (s *sessionActivityStore) MarkFactorProof(ctx context.Context, userID, factor string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.proofKey(userID, factor), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}
	return nil
}

// HasFactorProof reports whether an unexpired proof exists for the factor.
func (s *sessionActivityStore) HasFactorProof(ctx context.Context, userID, factor string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.proofKey(userID, factor)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}
	return n > 0, nil
}

// ClearFactorProofs drops pending proofs once the tier is satisfied.
func (s *sessionActivityStore) ClearFactorProofs(ctx context.Context, userID string, factors ...string) error {
	if len(factors) == 0 {
		return nil
	}
	keys := make([]string, 0, len(factors))
	for _, f := range factors {
		keys = append(keys, s.proofKey(userID, f))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", errActivityRedisUnavailable, err)
	}
	return nil
}

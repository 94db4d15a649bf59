package lockgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "pkc"

var (
	errChallengeNotFound         = errors.New("passkey challenge not found")
	errChallengeRedisUnavailable = errors.New("passkey challenge redis unavailable")
)

// passkeyChallengeStore holds in-flight WebAuthn ceremony state keyed by
// account id and ceremony kind, with an explicit TTL. The GETDEL consume
// makes each challenge single-use even across concurrent completions and
// across engine instances.
type passkeyChallengeStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func newPasskeyChallengeStore(redisClient *redis.Client, keyPrefix string, ttl time.Duration) *passkeyChallengeStore {
	return &passkeyChallengeStore{
		redis:  redisClient,
		prefix: keyPrefix + ":" + challengeKeyPrefix,
		ttl:    ttl,
	}
}

func (s *passkeyChallengeStore) key(userID, ceremony string) string {
	return s.prefix + ":" + ceremony + ":" + userID
}

// Put stores session data for the given ceremony ("register" or "login"),
// superseding any previous pending challenge for the same account.
func (s *passkeyChallengeStore) Put(ctx context.Context, userID, ceremony string, session *webauthn.SessionData) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID, ceremony), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume atomically fetches and deletes the pending challenge.
func (s *passkeyChallengeStore) Consume(ctx context.Context, userID, ceremony string) (*webauthn.SessionData, error) {
	data, err := s.redis.GetDel(ctx, s.key(userID, ceremony)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errChallengeNotFound
	}

	return &session, nil
}

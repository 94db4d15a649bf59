package lockgate

import (
	"context"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/lockgate/lockgate/internal/rate"
	"github.com/lockgate/lockgate/jwt"
	"github.com/lockgate/lockgate/pin"
)

// Engine defines a public type used by lockgate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	hasher          *identityHasher
	codeStore       *loginCodeStore
	attemptStore    *pinAttemptStore
	challengeStore  *passkeyChallengeStore
	activityStore   *sessionActivityStore
	rateLimiter     *rate.Limiter
	pinHasher       *pin.Hasher
	totp            *totpManager
	webAuthn        *webauthn.WebAuthn
	jwtManager      *jwt.Manager
	audit           *auditDispatcher
	metrics         *Metrics
	credentialStore CredentialStore
	codeSender      CodeSender
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// HashIdentity exposes the canonical identity hash so hosts can key their
// own account tables the same way the engine does. Input is trimmed and
// lowercased before hashing.
func (e *Engine) HashIdentity(rawIdentity string) string {
	if e == nil || e.hasher == nil {
		return ""
	}
	return e.hasher.Hash(rawIdentity)
}

// ParseSessionToken validates a session token and returns the principal it
// carries. It does not consult the lock policy; callers that gate protected
// operations combine this with [Engine.SessionStatus].
func (e *Engine) ParseSessionToken(token string) (Principal, error) {
	if e == nil || e.jwtManager == nil {
		return Principal{}, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseSession(token)
	if err != nil {
		return Principal{}, ErrTokenInvalid
	}
	return Principal{UserID: claims.UID, Role: claims.Role}, nil
}

func (e *Engine) issueSessionToken(principal Principal) (string, error) {
	sid := uuid.NewString()
	return e.jwtManager.CreateSession(principal.UserID, principal.Role, sid)
}

func (e *Engine) now() time.Time {
	return time.Now().UTC()
}

// recordUnlock refreshes the activity clock after a satisfied unlock factor
// so the lock tier evaluation starts over from now.
func (e *Engine) recordUnlock(ctx context.Context, userID string) error {
	if e.activityStore == nil {
		return nil
	}
	return e.activityStore.Touch(ctx, userID, e.now())
}

func (e *Engine) account(ctx context.Context, userID string) (*AccountRecord, error) {
	account, err := e.credentialStore.GetAccountByID(ctx, userID)
	if err != nil || account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

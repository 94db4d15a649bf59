package lockgate

import (
	"errors"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"

	"github.com/lockgate/lockgate/internal/rate"
	"github.com/lockgate/lockgate/jwt"
	"github.com/lockgate/lockgate/pin"
)

// Builder defines a public type used by lockgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	credentialStore CredentialStore
	codeSender      CodeSender
	auditSink       AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore describes the withcredentialstore operation and its observable behavior.
//
// WithCredentialStore may return an error when input validation, dependency calls, or security checks fail.
// WithCredentialStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentialStore = store
	return b
}

// WithCodeSender describes the withcodesender operation and its observable behavior.
//
// WithCodeSender may return an error when input validation, dependency calls, or security checks fail.
// WithCodeSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCodeSender(sender CodeSender) *Builder {
	b.codeSender = sender
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.credentialStore == nil {
		return nil, errors.New("credential store required")
	}

	if b.codeSender == nil {
		return nil, errors.New("code sender required")
	}

	engine := &Engine{
		config:          cfg,
		credentialStore: b.credentialStore,
		codeSender:      b.codeSender,
	}

	engine.hasher = newIdentityHasher(cfg.Identity.Secret)
	engine.codeStore = newLoginCodeStore(b.redis, cfg.Redis.KeyPrefix)
	engine.attemptStore = newPINAttemptStore(b.redis, cfg.Redis.KeyPrefix, cfg.PIN)
	engine.challengeStore = newPasskeyChallengeStore(b.redis, cfg.Redis.KeyPrefix, cfg.Passkey.ChallengeTTL)
	engine.activityStore = newSessionActivityStore(b.redis, cfg.Redis.KeyPrefix, cfg.LockPolicy.ActivityMaxIdle)
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Window:      cfg.RateLimit.Window,
		MaxRequests: cfg.RateLimit.MaxRequests,
		FailClosed:  cfg.RateLimit.FailClosed,
		KeyPrefix:   cfg.Redis.KeyPrefix,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.TOTP)

	ph, err := pin.New(pin.Config{
		Iterations: cfg.PIN.Iterations,
		SaltLength: cfg.PIN.SaltLength,
		KeyLength:  cfg.PIN.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.pinHasher = ph

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.Passkey.RPID,
		RPDisplayName: cfg.Passkey.RPDisplayName,
		RPOrigins:     append([]string(nil), cfg.Passkey.RPOrigins...),
	})
	if err != nil {
		return nil, err
	}
	engine.webAuthn = wa

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}

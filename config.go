package lockgate

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by lockgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Identity   IdentityConfig
	OTP        OTPConfig
	PIN        PINConfig
	TOTP       TOTPConfig
	Passkey    PasskeyConfig
	SeedPhrase SeedPhraseConfig
	LockPolicy LockPolicyConfig
	RateLimit  RateLimitConfig
	Token      TokenConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Redis      RedisConfig
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig defines a public type used by lockgate APIs.
//
// IdentityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentityConfig struct {
	// Secret is the server-wide HMAC key for identity hashing and the
	// seed-phrase verification hash. Rotating it orphans every stored
	// identity hash.
	Secret []byte
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by lockgate APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits      int
	CodeTTL     time.Duration
	MaxAttempts int
}

// PINConfig defines a public type used by lockgate APIs.
//
// PINConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PINConfig struct {
	Iterations   int
	SaltLength   int
	KeyLength    int
	MaxFailures  int
	LockDuration time.Duration
}

// TOTPConfig defines a public type used by lockgate APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	// SecretKey is the server-held AES-256 key encrypting TOTP secrets at
	// rest. Exactly 32 bytes.
	SecretKey []byte
}

// PasskeyConfig defines a public type used by lockgate APIs.
//
// PasskeyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasskeyConfig struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
	ChallengeTTL  time.Duration
	// AllowZeroCounter relaxes the strictly-increasing sign counter check
	// only when both the stored and presented counters are zero, for
	// platform authenticators that never report a counter.
	AllowZeroCounter bool
}

// SeedPhraseConfig defines a public type used by lockgate APIs.
//
// SeedPhraseConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SeedPhraseConfig struct {
	// EntropyBits controls mnemonic length; 256 bits yields 24 words.
	EntropyBits int
}

// LockPolicyConfig holds the idle thresholds of the lock-tier state machine.
// Each bound is exclusive at the lower edge of the next tier.
type LockPolicyConfig struct {
	NoneWithin      time.Duration // below: no unlock required
	PINWithin       time.Duration // below: pin (or biometric when a passkey is enrolled)
	FullLoginAfter  time.Duration // above: full login, factors cannot clear it
	ActivityMaxIdle time.Duration // hard ceiling on stored activity records
	// FactorProofTTL is how long a satisfied factor stays pending while a
	// tier that demands a second factor waits for it.
	FactorProofTTL time.Duration
}

// RateLimitConfig defines a public type used by lockgate APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	// FailClosed rejects requests when the limiter backend is unreachable.
	// The default (false) preserves the documented availability-over-
	// strictness tradeoff: a limiter outage admits traffic.
	FailClosed bool
}

// TokenConfig defines a public type used by lockgate APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

// AuditConfig defines a public type used by lockgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by lockgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig defines a public type used by lockgate APIs.
//
// RedisConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisConfig struct {
	KeyPrefix string
}

func defaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			Digits:      6,
			CodeTTL:     10 * time.Minute,
			MaxAttempts: 5,
		},
		PIN: PINConfig{
			Iterations:   100_000,
			SaltLength:   32,
			KeyLength:    64,
			MaxFailures:  3,
			LockDuration: 5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:    "lockgate",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Passkey: PasskeyConfig{
			ChallengeTTL: 5 * time.Minute,
		},
		SeedPhrase: SeedPhraseConfig{
			EntropyBits: 256,
		},
		LockPolicy: LockPolicyConfig{
			NoneWithin:      5 * time.Minute,
			PINWithin:       30 * time.Minute,
			FullLoginAfter:  24 * time.Hour,
			ActivityMaxIdle: 30 * 24 * time.Hour,
			FactorProofTTL:  5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Window:      time.Minute,
			MaxRequests: 10,
		},
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "lockgate",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Redis: RedisConfig{
			KeyPrefix: "lg",
		},
	}
}

// DefaultConfig returns the baseline configuration with the interoperable
// cryptographic parameters fixed (PBKDF2 100k iterations, 30s TOTP step ±1,
// 10-minute codes, 5-minute challenges and lockouts).
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if len(c.Identity.Secret) < 16 {
		return errors.New("identity secret must be at least 16 bytes")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("otp digits out of range")
	}
	if c.OTP.CodeTTL <= 0 {
		return errors.New("otp code ttl must be positive")
	}
	if c.PIN.Iterations < 10_000 {
		return errors.New("pin iterations below safe floor")
	}
	if c.PIN.SaltLength < 16 || c.PIN.KeyLength < 32 {
		return errors.New("pin salt/key length below safe floor")
	}
	if c.PIN.MaxFailures <= 0 || c.PIN.LockDuration <= 0 {
		return errors.New("pin lockout configuration invalid")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits out of range")
	}
	if c.TOTP.Period <= 0 || c.TOTP.Skew < 0 {
		return errors.New("totp period/skew configuration invalid")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported totp algorithm")
	}
	if len(c.TOTP.SecretKey) != 32 {
		return errors.New("totp secret key must be exactly 32 bytes")
	}
	if c.Passkey.RPID == "" || len(c.Passkey.RPOrigins) == 0 {
		return errors.New("passkey relying party configuration incomplete")
	}
	if c.Passkey.ChallengeTTL <= 0 {
		return errors.New("passkey challenge ttl must be positive")
	}
	if c.SeedPhrase.EntropyBits != 128 && c.SeedPhrase.EntropyBits != 160 &&
		c.SeedPhrase.EntropyBits != 192 && c.SeedPhrase.EntropyBits != 224 &&
		c.SeedPhrase.EntropyBits != 256 {
		return errors.New("seed phrase entropy bits invalid")
	}
	if c.LockPolicy.NoneWithin <= 0 ||
		c.LockPolicy.PINWithin <= c.LockPolicy.NoneWithin ||
		c.LockPolicy.FullLoginAfter <= c.LockPolicy.PINWithin {
		return errors.New("lock policy thresholds must be strictly increasing")
	}
	if c.LockPolicy.FactorProofTTL <= 0 {
		return errors.New("lock policy factor proof ttl must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0 {
		return errors.New("rate limit configuration invalid")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Identity.Secret = cloneBytes(cfg.Identity.Secret)
	out.TOTP.SecretKey = cloneBytes(cfg.TOTP.SecretKey)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Passkey.RPOrigins != nil {
		out.Passkey.RPOrigins = append([]string(nil), cfg.Passkey.RPOrigins...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package lockgate

import (
	"testing"
	"time"
)

func TestConfigValidateTable(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "baseline valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "identity secret too short",
			mutate: func(c *Config) {
				c.Identity.Secret = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "otp digits too low",
			mutate: func(c *Config) {
				c.OTP.Digits = 3
			},
			wantValid: false,
		},
		{
			name: "otp digits too high",
			mutate: func(c *Config) {
				c.OTP.Digits = 11
			},
			wantValid: false,
		},
		{
			name: "otp ttl zero",
			mutate: func(c *Config) {
				c.OTP.CodeTTL = 0
			},
			wantValid: false,
		},
		{
			name: "pin iterations below floor",
			mutate: func(c *Config) {
				c.PIN.Iterations = 5_000
			},
			wantValid: false,
		},
		{
			name: "pin salt below floor",
			mutate: func(c *Config) {
				c.PIN.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "pin lockout zero failures",
			mutate: func(c *Config) {
				c.PIN.MaxFailures = 0
			},
			wantValid: false,
		},
		{
			name: "totp algorithm sha256 valid",
			mutate: func(c *Config) {
				c.TOTP.Algorithm = "SHA256"
			},
			wantValid: true,
		},
		{
			name: "totp algorithm unknown",
			mutate: func(c *Config) {
				c.TOTP.Algorithm = "MD5"
			},
			wantValid: false,
		},
		{
			name: "totp secret key wrong size",
			mutate: func(c *Config) {
				c.TOTP.SecretKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "passkey rp missing",
			mutate: func(c *Config) {
				c.Passkey.RPID = ""
			},
			wantValid: false,
		},
		{
			name: "passkey origins missing",
			mutate: func(c *Config) {
				c.Passkey.RPOrigins = nil
			},
			wantValid: false,
		},
		{
			name: "seed phrase entropy invalid",
			mutate: func(c *Config) {
				c.SeedPhrase.EntropyBits = 100
			},
			wantValid: false,
		},
		{
			name: "seed phrase entropy 128 valid",
			mutate: func(c *Config) {
				c.SeedPhrase.EntropyBits = 128
			},
			wantValid: true,
		},
		{
			name: "lock thresholds not increasing",
			mutate: func(c *Config) {
				c.LockPolicy.PINWithin = c.LockPolicy.NoneWithin
			},
			wantValid: false,
		},
		{
			name: "full login before pin tier",
			mutate: func(c *Config) {
				c.LockPolicy.FullLoginAfter = 10 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "factor proof ttl zero",
			mutate: func(c *Config) {
				c.LockPolicy.FactorProofTTL = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit window zero",
			mutate: func(c *Config) {
				c.RateLimit.Window = 0
			},
			wantValid: false,
		},
		{
			name: "token ttl zero",
			mutate: func(c *Config) {
				c.Token.TTL = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigMatchesInteropParameters(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OTP.Digits != 6 || cfg.OTP.CodeTTL != 10*time.Minute {
		t.Fatalf("unexpected OTP defaults: %+v", cfg.OTP)
	}
	if cfg.PIN.Iterations != 100_000 || cfg.PIN.SaltLength != 32 || cfg.PIN.KeyLength != 64 {
		t.Fatalf("unexpected PIN hashing defaults: %+v", cfg.PIN)
	}
	if cfg.PIN.MaxFailures != 3 || cfg.PIN.LockDuration != 5*time.Minute {
		t.Fatalf("unexpected PIN lockout defaults: %+v", cfg.PIN)
	}
	if cfg.TOTP.Period != 30 || cfg.TOTP.Skew != 1 || cfg.TOTP.Digits != 6 {
		t.Fatalf("unexpected TOTP defaults: %+v", cfg.TOTP)
	}
	if cfg.Passkey.ChallengeTTL != 5*time.Minute {
		t.Fatalf("unexpected passkey challenge TTL: %v", cfg.Passkey.ChallengeTTL)
	}
	if cfg.SeedPhrase.EntropyBits != 256 {
		t.Fatalf("unexpected seed phrase entropy: %d", cfg.SeedPhrase.EntropyBits)
	}
	if cfg.LockPolicy.NoneWithin != 5*time.Minute ||
		cfg.LockPolicy.PINWithin != 30*time.Minute ||
		cfg.LockPolicy.FullLoginAfter != 24*time.Hour {
		t.Fatalf("unexpected lock policy defaults: %+v", cfg.LockPolicy)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected rate limit window: %v", cfg.RateLimit.Window)
	}
}

func TestCloneConfigIsolatesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	cfg.Identity.Secret[0] ^= 0xff
	cfg.TOTP.SecretKey[0] ^= 0xff
	cfg.Token.PrivateKey[0] ^= 0xff

	if clone.Identity.Secret[0] == cfg.Identity.Secret[0] {
		t.Fatal("identity secret shared with clone")
	}
	if clone.TOTP.SecretKey[0] == cfg.TOTP.SecretKey[0] {
		t.Fatal("totp secret key shared with clone")
	}
	if clone.Token.PrivateKey[0] == cfg.Token.PrivateKey[0] {
		t.Fatal("token private key shared with clone")
	}
}

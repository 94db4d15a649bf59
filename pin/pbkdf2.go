// Package pin derives and verifies the 6-digit PIN unlock factor using
// PBKDF2-HMAC-SHA256. The stored form is "hex(salt):hex(hash)"; iteration
// count and output length are fixed by [Config] so stored verifiers are
// interoperable across implementations.
package pin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations = 10_000
	minSaltLength = 16
	minKeyLength  = 32
	pinDigits     = 6
)

// Config holds the PBKDF2 parameters.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Hasher hashes and verifies PINs. Safe for concurrent use.
type Hasher struct {
	config Config
}

// ErrFormat is returned when the input is not exactly six ASCII digits.
var ErrFormat = errors.New("pin must be exactly six digits")

// New validates cfg and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.Iterations < minIterations {
		return nil, errors.New("iteration count below safe floor")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("salt length below safe floor")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("key length below safe floor")
	}
	return &Hasher{config: cfg}, nil
}

// ValidateFormat rejects any input that is not exactly six ASCII digits.
func ValidateFormat(pin string) error {
	if len(pin) != pinDigits {
		return ErrFormat
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrFormat
		}
	}
	return nil
}

// Hash derives a fresh random salt and returns the encoded verifier.
// Two calls with the same PIN produce different outputs.
func (h *Hasher) Hash(pin string) (string, error) {
	if err := ValidateFormat(pin); err != nil {
		return "", err
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	derived := pbkdf2.Key([]byte(pin), salt, h.config.Iterations, h.config.KeyLength, sha256.New)

	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(derived), nil
}

// Verify recomputes the derivation with the stored salt and compares in
// constant time. A malformed stored verifier is an error, not a mismatch.
func (h *Hasher) Verify(pin string, encoded string) (bool, error) {
	if err := ValidateFormat(pin); err != nil {
		return false, err
	}

	salt, stored, err := decode(encoded)
	if err != nil {
		return false, err
	}

	derived := pbkdf2.Key([]byte(pin), salt, h.config.Iterations, len(stored), sha256.New)

	return subtle.ConstantTimeCompare(derived, stored) == 1, nil
}

func decode(encoded string) (salt, hash []byte, err error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return nil, nil, errors.New("invalid pin verifier format")
	}

	salt, err = hex.DecodeString(parts[0])
	if err != nil || len(salt) < minSaltLength {
		return nil, nil, errors.New("invalid pin verifier salt")
	}

	hash, err = hex.DecodeString(parts[1])
	if err != nil || len(hash) < minKeyLength {
		return nil, nil, errors.New("invalid pin verifier hash")
	}

	return salt, hash, nil
}

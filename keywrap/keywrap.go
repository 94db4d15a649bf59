// Package keywrap implements the symmetric key wrapping used by the
// recovery vault and the encrypted-at-rest TOTP secrets: AES-256-GCM with a
// random 16-byte nonce, stored as "hex(nonce):hex(tag):hex(ciphertext)",
// plus HKDF-SHA256 derivation of wrapping keys from seed material.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes. 16 rather than the GCM
	// default of 12, matching the stored record layout.
	NonceSize = 16

	tagSize = 16
)

var (
	// ErrKeySize is returned when a key is not exactly 32 bytes.
	ErrKeySize = errors.New("key must be exactly 32 bytes")
	// ErrCiphertext is returned for malformed or unauthenticated records.
	ErrCiphertext = errors.New("invalid ciphertext record")
)

// DeriveKey expands seed into a 32-byte key via HKDF-SHA256 bound to info.
// The same seed with a different info yields an unrelated key.
func DeriveKey(seed []byte, info string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, errors.New("empty seed")
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, seed, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Wrap seals plaintext under key and returns the encoded record.
func Wrap(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Unwrap opens an encoded record. Authentication failure, truncation, and
// wrong-key decryption are all reported as [ErrCiphertext].
func Unwrap(key []byte, record string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(record, ":")
	if len(parts) != 3 {
		return nil, ErrCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return nil, ErrCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, ErrCiphertext
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

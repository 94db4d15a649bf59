package lockgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// identityHasher is the deterministic one-way transform of a raw identity
// string into the storage key. The raw string never leaves this file's
// callers; only the hash is persisted, keyed on, or audited.
type identityHasher struct {
	secret []byte
}

func newIdentityHasher(secret []byte) *identityHasher {
	return &identityHasher{secret: secret}
}

// Hash returns hex(HMAC-SHA256(secret, lowercase(trimmed raw))).
func (h *identityHasher) Hash(rawIdentity string) string {
	normalized := strings.ToLower(strings.TrimSpace(rawIdentity))
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashWithLabel derives a domain-separated hash for secondary uses (the
// seed-phrase verification hash) so those values can never collide with an
// identity column.
func (h *identityHasher) HashWithLabel(label, value string) string {
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write([]byte(label))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(mac.Sum(nil))
}

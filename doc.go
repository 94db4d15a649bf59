// Package lockgate provides a progressive identity and session-lock security
// engine: anonymized identity lookup, one-time-code login, an idle-driven
// lock-tier state machine, three interchangeable unlock factors (PIN,
// passkey, TOTP), and a seed-phrase recovery vault that escrows a per-user
// encryption key.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// lockgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (SessionStatus, RegistrationResult, etc.). Durable
// credentials live behind the host-injected [CredentialStore]; every
// ephemeral, shared, TTL-bound record (login codes, rate windows, PIN failure
// counters, passkey ceremony state, activity timestamps) lives in Redis and
// is never held in process-global maps.
//
// # What this package must NOT do
//
//   - Persist or log a raw identity string. Only the HMAC identity hash ever
//     reaches storage, audit events, or Redis keys.
//   - Expose a seed phrase after generation, or a TOTP secret after setup.
//   - Invent cryptography. Primitives are standard (HMAC-SHA256,
//     PBKDF2-HMAC-SHA256, RFC 6238, HKDF-SHA256, AES-256-GCM, BIP39,
//     WebAuthn) with fixed, interoperable parameters.
package lockgate

// Package middleware provides net/http middleware for lockgate-protected routes.
//
// [Guard] is the single principal extraction path: it parses the bearer token,
// resolves the principal, and stores it on the request context. Every protected
// handler reads the principal from there; there is no per-route session check.
// [RequireUnlocked] additionally evaluates the session lock tier and refuses
// requests whose session is not fully unlocked.
//
// # What this package must NOT do
//
//   - Log tokens or raw identities.
//   - Bypass the engine's lock policy for any caller.
package middleware

// Package rate provides the Redis-backed fixed-window request limiter used
// wherever attacker-controlled repetition is possible (code requests, PIN
// attempts).
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. One key per
// scope+identifier pair, e.g. rl:otp:<identity-hash>.
//
// # Failure policy
//
// By default the limiter fails open: a Redis outage admits requests. This is
// a deliberate availability-over-strictness tradeoff; set Config.FailClosed
// to invert it.
//
// # What this package must NOT do
//
//   - Implement per-factor lockout policies (those live in the root package
//     attempt store).
//   - Be imported outside the lockgate module.
package rate

package internaldefs

import (
	lockgate "github.com/lockgate/lockgate"
)

// CounterDef defines a public type used by lockgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   lockgate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by lockgate APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   lockgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the security engine.
var CounterDefs = []CounterDef{
	{ID: lockgate.MetricCodeRequested, Name: "lockgate_code_requested_total", Help: "Issued one-time login codes."},
	{ID: lockgate.MetricCodeVerifySuccess, Name: "lockgate_code_verify_success_total", Help: "Successful login code verifications."},
	{ID: lockgate.MetricCodeVerifyFailure, Name: "lockgate_code_verify_failure_total", Help: "Failed login code verifications."},
	{ID: lockgate.MetricCodeRateLimited, Name: "lockgate_code_rate_limited_total", Help: "Rate-limited login code requests."},
	{ID: lockgate.MetricRegistration, Name: "lockgate_registration_total", Help: "Completed account registrations."},
	{ID: lockgate.MetricPINSetup, Name: "lockgate_pin_setup_total", Help: "PIN setup operations."},
	{ID: lockgate.MetricPINVerifySuccess, Name: "lockgate_pin_verify_success_total", Help: "Successful PIN verifications."},
	{ID: lockgate.MetricPINVerifyFailure, Name: "lockgate_pin_verify_failure_total", Help: "Failed PIN verifications."},
	{ID: lockgate.MetricPINLockout, Name: "lockgate_pin_lockout_total", Help: "PIN lockouts triggered by consecutive failures."},
	{ID: lockgate.MetricPINRateLimited, Name: "lockgate_pin_rate_limited_total", Help: "Rate-limited PIN verifications."},
	{ID: lockgate.MetricTOTPProvisioned, Name: "lockgate_totp_provisioned_total", Help: "Provisioned TOTP secrets."},
	{ID: lockgate.MetricTOTPEnabled, Name: "lockgate_totp_enabled_total", Help: "TOTP credentials enabled after confirmation."},
	{ID: lockgate.MetricTOTPVerifySuccess, Name: "lockgate_totp_verify_success_total", Help: "Successful TOTP verifications."},
	{ID: lockgate.MetricTOTPVerifyFailure, Name: "lockgate_totp_verify_failure_total", Help: "Failed TOTP verifications."},
	{ID: lockgate.MetricTOTPDisabled, Name: "lockgate_totp_disabled_total", Help: "TOTP disable operations."},
	{ID: lockgate.MetricPasskeyRegistered, Name: "lockgate_passkey_registered_total", Help: "Registered passkey credentials."},
	{ID: lockgate.MetricPasskeyAuthSuccess, Name: "lockgate_passkey_auth_success_total", Help: "Successful passkey assertions."},
	{ID: lockgate.MetricPasskeyAuthFailure, Name: "lockgate_passkey_auth_failure_total", Help: "Failed passkey assertions."},
	{ID: lockgate.MetricPasskeyCounterReplay, Name: "lockgate_passkey_counter_replay_total", Help: "Passkey assertions rejected for counter replay."},
	{ID: lockgate.MetricSeedPhraseGenerated, Name: "lockgate_seed_phrase_generated_total", Help: "Generated recovery phrases."},
	{ID: lockgate.MetricSeedPhraseRecovered, Name: "lockgate_seed_phrase_recovered_total", Help: "Successful seed phrase recoveries."},
	{ID: lockgate.MetricSeedPhraseRecoveryFailure, Name: "lockgate_seed_phrase_recovery_failure_total", Help: "Failed seed phrase recoveries."},
	{ID: lockgate.MetricSeedPhraseRegenerated, Name: "lockgate_seed_phrase_regenerated_total", Help: "Seed phrase regeneration operations."},
	{ID: lockgate.MetricSessionUnlock, Name: "lockgate_session_unlock_total", Help: "Lock tiers cleared by an unlock factor."},
	{ID: lockgate.MetricFullLoginRequired, Name: "lockgate_full_login_required_total", Help: "Operations refused pending a full login."},
	{ID: lockgate.MetricRateLimitHit, Name: "lockgate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the security engine.
var HistogramDefs = []HistogramDef{
	{ID: lockgate.MetricStatusLatency, Name: "lockgate_status_latency_seconds", Help: "Session status evaluation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the security engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the security engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

package lockgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventCodeRequested          = "login_code_requested"
	auditEventCodeVerifySuccess      = "login_code_verify_success"
	auditEventCodeVerifyFailure      = "login_code_verify_failure"
	auditEventCodeRateLimited        = "login_code_rate_limited"
	auditEventRegistrationSuccess    = "registration_success"
	auditEventRegistrationFailure    = "registration_failure"
	auditEventPINSetup               = "pin_setup"
	auditEventPINVerifySuccess       = "pin_verify_success"
	auditEventPINVerifyFailure       = "pin_verify_failure"
	auditEventPINLockout             = "pin_lockout"
	auditEventTOTPProvisioned        = "totp_provisioned"
	auditEventTOTPEnabled            = "totp_enabled"
	auditEventTOTPVerifySuccess      = "totp_verify_success"
	auditEventTOTPVerifyFailure      = "totp_verify_failure"
	auditEventTOTPDisabled           = "totp_disabled"
	auditEventPasskeyRegistered      = "passkey_registered"
	auditEventPasskeyAuthSuccess     = "passkey_auth_success"
	auditEventPasskeyAuthFailure     = "passkey_auth_failure"
	auditEventPasskeyCounterReplay   = "passkey_counter_replay"
	auditEventSeedPhraseGenerated    = "seed_phrase_generated"
	auditEventSeedPhraseRecovered    = "seed_phrase_recovered"
	auditEventSeedPhraseRecoveryFail = "seed_phrase_recovery_failure"
	auditEventSeedPhraseRegenerated  = "seed_phrase_regenerated"
	auditEventSessionUnlock          = "session_unlock"
	auditEventSessionFullLoginForced = "session_full_login_required"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by lockgate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrUnauthorized      AuditErrorCode = "unauthorized"
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrInvalidToken      AuditErrorCode = "invalid_token"
	auditErrAccountNotFound   AuditErrorCode = "account_not_found"
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrCodeInvalid       AuditErrorCode = "code_invalid"
	auditErrPINFormat         AuditErrorCode = "pin_format"
	auditErrPINInvalid        AuditErrorCode = "pin_invalid"
	auditErrPINLocked         AuditErrorCode = "pin_locked"
	auditErrTOTPInvalid       AuditErrorCode = "totp_invalid"
	auditErrTOTPState         AuditErrorCode = "totp_state"
	auditErrPasskeyInvalid    AuditErrorCode = "passkey_invalid"
	auditErrPasskeyExpired    AuditErrorCode = "passkey_challenge_expired"
	auditErrPasskeyReplay     AuditErrorCode = "passkey_counter_replay"
	auditErrSeedPhraseInvalid AuditErrorCode = "seed_phrase_invalid"
	auditErrProofRequired     AuditErrorCode = "factor_proof_required"
	auditErrFullLogin         AuditErrorCode = "full_login_required"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	identityHash string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		UserID:       userID,
		IdentityHash: identityHash,
		IP:           clientIPFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	identityHash string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", identityHash, ErrRateLimited, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrSeedPhraseExists),
		errors.Is(err, ErrTOTPAlreadyEnabled):
		return auditErrDuplicate
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrPINFormat):
		return auditErrPINFormat
	case errors.Is(err, ErrPINInvalid),
		errors.Is(err, ErrPINNotConfigured):
		return auditErrPINInvalid
	case errors.Is(err, ErrPINLocked):
		return auditErrPINLocked
	case errors.Is(err, ErrTOTPInvalid):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPNotEnabled):
		return auditErrTOTPState
	case errors.Is(err, ErrPasskeyInvalid),
		errors.Is(err, ErrPasskeyNotConfigured):
		return auditErrPasskeyInvalid
	case errors.Is(err, ErrPasskeyChallengeExpired):
		return auditErrPasskeyExpired
	case errors.Is(err, ErrPasskeyCounterReplay):
		return auditErrPasskeyReplay
	case errors.Is(err, ErrSeedPhraseInvalid),
		errors.Is(err, ErrSeedPhraseChecksum),
		errors.Is(err, ErrSeedPhraseNotConfigured):
		return auditErrSeedPhraseInvalid
	case errors.Is(err, ErrSeedPhraseProofRequired):
		return auditErrProofRequired
	case errors.Is(err, ErrFullLoginRequired),
		errors.Is(err, ErrUnlockNotSatisfied):
		return auditErrFullLogin
	case errors.Is(err, ErrCodeUnavailable),
		errors.Is(err, ErrPINUnavailable),
		errors.Is(err, ErrTOTPUnavailable),
		errors.Is(err, ErrPasskeyUnavailable),
		errors.Is(err, ErrSeedPhraseUnavailable),
		errors.Is(err, ErrActivityUnavailable),
		errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

package lockgate

import (
	"context"
	"errors"
	"strconv"

	"github.com/lockgate/lockgate/internal/rate"
	"github.com/lockgate/lockgate/pin"
)

// SetupPIN hashes and stores a new PIN for the account. The input must be
// exactly six ASCII digits. Setting a PIN clears any failure counter or
// active lockout from a previous PIN.
func (e *Engine) SetupPIN(ctx context.Context, userID, pinCode string) error {
	if e == nil || e.pinHasher == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}
	if err := pin.ValidateFormat(pinCode); err != nil {
		return ErrPINFormat
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return err
	}

	encoded, err := e.pinHasher.Hash(pinCode)
	if err != nil {
		return ErrPINUnavailable
	}
	if err := e.credentialStore.PutPIN(ctx, account.UserID, PINCredential{
		Encoded: encoded,
		SetAt:   e.now(),
	}); err != nil {
		return ErrPINUnavailable
	}
	if err := e.attemptStore.Reset(ctx, account.UserID); err != nil {
		return ErrPINUnavailable
	}

	e.metricInc(MetricPINSetup)
	e.emitAudit(ctx, auditEventPINSetup, true, account.UserID, "", nil, nil)
	return nil
}

// VerifyPIN checks a PIN attempt against the stored credential. The
// authentication outcome, including lockout state, is reported in the
// result; the error return is reserved for state and backend failures. On
// the configured consecutive failure the account locks for the lock
// duration and RetryAfter carries the remaining window. A successful
// verification clears the counter and refreshes the activity clock.
func (e *Engine) VerifyPIN(ctx context.Context, userID, pinCode string) (*PINVerifyResult, error) {
	if e == nil || e.pinHasher == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}
	// Malformed input is rejected before any store or limiter access.
	if err := pin.ValidateFormat(pinCode); err != nil {
		return nil, ErrPINFormat
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rateScopePIN, account.UserID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricPINRateLimited)
				e.emitRateLimit(ctx, rateScopePIN, "", func() map[string]string {
					return map[string]string{"user_id": account.UserID}
				})
				return nil, ErrRateLimited
			}
			return nil, ErrPINUnavailable
		}
	}

	if err := e.requireUnlockable(ctx, account.UserID); err != nil {
		return nil, err
	}

	remaining, err := e.attemptStore.LockRemaining(ctx, account.UserID)
	if err != nil {
		return nil, ErrPINUnavailable
	}
	if remaining > 0 {
		e.emitAudit(ctx, auditEventPINVerifyFailure, false, account.UserID, "", ErrPINLocked, lockMetadata(remaining.Seconds()))
		return &PINVerifyResult{Locked: true, RetryAfter: remaining}, nil
	}

	cred, err := e.credentialStore.GetPIN(ctx, account.UserID)
	if err != nil || cred == nil || cred.Encoded == "" {
		return nil, ErrPINNotConfigured
	}

	ok, err := e.pinHasher.Verify(pinCode, cred.Encoded)
	if err != nil {
		return nil, ErrPINUnavailable
	}

	if !ok {
		attemptsLeft, locked, err := e.attemptStore.RecordFailure(ctx, account.UserID)
		if err != nil {
			return nil, ErrPINUnavailable
		}
		e.metricInc(MetricPINVerifyFailure)
		if locked {
			e.metricInc(MetricPINLockout)
			e.emitAudit(ctx, auditEventPINLockout, false, account.UserID, "", ErrPINLocked, lockMetadata(e.config.PIN.LockDuration.Seconds()))
			return &PINVerifyResult{Locked: true, RetryAfter: e.config.PIN.LockDuration}, nil
		}
		e.emitAudit(ctx, auditEventPINVerifyFailure, false, account.UserID, "", ErrPINInvalid, nil)
		return &PINVerifyResult{AttemptsRemaining: attemptsLeft}, nil
	}

	if err := e.attemptStore.Reset(ctx, account.UserID); err != nil {
		return nil, ErrPINUnavailable
	}
	if err := e.completeUnlock(ctx, account.UserID, factorPIN); err != nil {
		return nil, err
	}

	e.metricInc(MetricPINVerifySuccess)
	e.emitAudit(ctx, auditEventPINVerifySuccess, true, account.UserID, "", nil, nil)
	e.emitAudit(ctx, auditEventSessionUnlock, true, account.UserID, "", nil, func() map[string]string {
		return map[string]string{"factor": "pin"}
	})
	e.metricInc(MetricSessionUnlock)
	return &PINVerifyResult{Success: true}, nil
}

func lockMetadata(seconds float64) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"remaining_seconds": strconv.Itoa(int(seconds)),
		}
	}
}

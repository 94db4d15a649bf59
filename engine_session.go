package lockgate

import (
	"context"
	"errors"
	"time"
)

const (
	factorPIN     = "pin"
	factorTOTP    = "totp"
	factorPasskey = "passkey"
)

// factorSet is what the account has enrolled, loaded once per evaluation.
type factorSet struct {
	pin      bool
	totp     bool
	passkeys int
}

func (f factorSet) hasPasskey() bool { return f.passkeys > 0 }

// lockTierForIdle maps idle time onto a lock tier. Pure function of the
// thresholds; the biometric tier only exists when a passkey is enrolled.
func lockTierForIdle(cfg LockPolicyConfig, idle time.Duration, hasPasskey bool) LockLevel {
	switch {
	case idle < cfg.NoneWithin:
		return LockNone
	case idle < cfg.PINWithin:
		if hasPasskey {
			return LockBiometric
		}
		return LockPIN
	case idle < cfg.FullLoginAfter:
		return LockPINPlusTOTP
	default:
		return LockFullLogin
	}
}

// SessionStatus evaluates the lock tier from idle time and reports which
// unlock methods can clear it. The read is pure except that a tier of none
// refreshes the activity timestamp, so an actively polled session never
// drifts into a lock tier.
func (e *Engine) SessionStatus(ctx context.Context, userID string) (*SessionStatus, error) {
	if e == nil || e.activityStore == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}
	start := time.Now()

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	factors, err := e.enrolledFactors(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	tier, idle, err := e.currentLockLevel(ctx, account.UserID, factors)
	if err != nil {
		return nil, err
	}

	if tier == LockNone {
		if err := e.activityStore.Touch(ctx, account.UserID, e.now()); err != nil {
			return nil, ErrActivityUnavailable
		}
	}
	if tier == LockFullLogin {
		e.metricInc(MetricFullLoginRequired)
	}

	if e.metrics != nil {
		e.metrics.Observe(MetricStatusLatency, time.Since(start))
	}

	return &SessionStatus{
		LockLevel:        tier,
		AvailableMethods: availableMethods(tier, factors),
		IdleMinutes:      int(idle / time.Minute),
	}, nil
}

func availableMethods(tier LockLevel, factors factorSet) []string {
	switch tier {
	case LockBiometric:
		methods := []string{"biometric"}
		if factors.pin {
			methods = append(methods, factorPIN)
		}
		return methods
	case LockPIN:
		return []string{factorPIN}
	case LockPINPlusTOTP:
		return []string{factorPIN, factorTOTP}
	case LockFullLogin:
		return []string{"otp"}
	default:
		return nil
	}
}

func (e *Engine) enrolledFactors(ctx context.Context, userID string) (factorSet, error) {
	var out factorSet

	if cred, err := e.credentialStore.GetPIN(ctx, userID); err == nil && cred != nil && cred.Encoded != "" {
		out.pin = true
	}
	if cred, err := e.credentialStore.GetTOTP(ctx, userID); err == nil && cred.Enabled() {
		out.totp = true
	}
	creds, err := e.credentialStore.ListPasskeys(ctx, userID)
	if err == nil {
		out.passkeys = len(creds)
	}

	return out, nil
}

// currentLockLevel reads the activity clock and folds it through the tier
// thresholds. A missing record means the account has been idle past the
// retention window, which is maximal idle.
func (e *Engine) currentLockLevel(ctx context.Context, userID string, factors factorSet) (LockLevel, time.Duration, error) {
	last, err := e.activityStore.LastActivity(ctx, userID)
	if err != nil {
		if errors.Is(err, errActivityNotFound) {
			return LockFullLogin, e.config.LockPolicy.ActivityMaxIdle, nil
		}
		return 0, 0, ErrActivityUnavailable
	}

	idle := e.now().Sub(last)
	if idle < 0 {
		idle = 0
	}
	return lockTierForIdle(e.config.LockPolicy, idle, factors.hasPasskey()), idle, nil
}

// requireUnlockable rejects factor attempts once the policy demands a full
// login. The full-login tier is terminal: it is cleared only by repeating
// the cold login flow, never by an unlock factor.
func (e *Engine) requireUnlockable(ctx context.Context, userID string) error {
	factors, err := e.enrolledFactors(ctx, userID)
	if err != nil {
		return err
	}
	tier, _, err := e.currentLockLevel(ctx, userID, factors)
	if err != nil {
		return err
	}
	if tier == LockFullLogin {
		e.metricInc(MetricFullLoginRequired)
		e.emitAudit(ctx, auditEventSessionFullLoginForced, false, userID, "", ErrFullLoginRequired, nil)
		return ErrFullLoginRequired
	}
	return nil
}

// completeUnlock applies one satisfied factor to the current tier. Single-
// factor tiers clear immediately; pin_plus_totp holds the first proof for
// FactorProofTTL and clears only when both components are in. A passkey
// assertion substitutes for the pin component, never for the totp one.
func (e *Engine) completeUnlock(ctx context.Context, userID, factor string) error {
	factors, err := e.enrolledFactors(ctx, userID)
	if err != nil {
		return err
	}
	tier, _, err := e.currentLockLevel(ctx, userID, factors)
	if err != nil {
		return err
	}

	switch tier {
	case LockNone, LockBiometric, LockPIN:
		return e.finishUnlock(ctx, userID)

	case LockPINPlusTOTP:
		proofFactor := factor
		if factor == factorPasskey {
			proofFactor = factorPIN
		}
		ttl := e.config.LockPolicy.FactorProofTTL
		if err := e.activityStore.MarkFactorProof(ctx, userID, proofFactor, ttl); err != nil {
			return ErrActivityUnavailable
		}

		havePIN, err := e.activityStore.HasFactorProof(ctx, userID, factorPIN)
		if err != nil {
			return ErrActivityUnavailable
		}
		haveTOTP, err := e.activityStore.HasFactorProof(ctx, userID, factorTOTP)
		if err != nil {
			return ErrActivityUnavailable
		}
		if !havePIN || !haveTOTP {
			return nil
		}
		return e.finishUnlock(ctx, userID)

	default:
		return ErrFullLoginRequired
	}
}

func (e *Engine) finishUnlock(ctx context.Context, userID string) error {
	if err := e.activityStore.ClearFactorProofs(ctx, userID, factorPIN, factorTOTP); err != nil {
		return ErrActivityUnavailable
	}
	if err := e.activityStore.Touch(ctx, userID, e.now()); err != nil {
		return ErrActivityUnavailable
	}
	return nil
}

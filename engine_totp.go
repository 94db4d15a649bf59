package lockgate

import (
	"context"

	"github.com/lockgate/lockgate/keywrap"
)

// ProvisionTOTP generates a fresh TOTP secret for the account, stores it
// encrypted and un-enabled, and returns the base32 secret with its
// otpauth:// URI. The secret is disclosed exactly once; calling this again
// before setup is confirmed replaces the pending secret.
func (e *Engine) ProvisionTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	if e == nil || e.totp == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cred, err := e.credentialStore.GetTOTP(ctx, account.UserID); err == nil && cred.Enabled() {
		return nil, ErrTOTPAlreadyEnabled
	}

	return e.provisionTOTP(ctx, account.UserID, account.UserID)
}

func (e *Engine) provisionTOTP(ctx context.Context, userID, accountLabel string) (*TOTPSetup, error) {
	secretRaw, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, ErrTOTPUnavailable
	}

	encrypted, err := keywrap.Wrap(e.config.TOTP.SecretKey, secretRaw)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if err := e.credentialStore.PutTOTP(ctx, userID, TOTPCredential{
		EncryptedSecret: encrypted,
	}); err != nil {
		return nil, ErrTOTPUnavailable
	}

	e.metricInc(MetricTOTPProvisioned)
	e.emitAudit(ctx, auditEventTOTPProvisioned, true, userID, "", nil, nil)
	return &TOTPSetup{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, accountLabel),
	}, nil
}

// ConfirmTOTPSetup proves possession of a provisioned secret with one valid
// code and marks the credential enabled. Until this succeeds the credential
// does not count as an enrolled factor.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, userID, code string) error {
	if e == nil || e.totp == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}

	cred, err := e.credentialStore.GetTOTP(ctx, userID)
	if err != nil || cred == nil || cred.EncryptedSecret == "" {
		return ErrTOTPNotConfigured
	}
	if cred.Enabled() {
		return ErrTOTPAlreadyEnabled
	}

	secret, err := keywrap.Unwrap(e.config.TOTP.SecretKey, cred.EncryptedSecret)
	if err != nil {
		return ErrTOTPUnavailable
	}

	ok, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return ErrTOTPUnavailable
	}
	if !ok {
		e.metricInc(MetricTOTPVerifyFailure)
		e.emitAudit(ctx, auditEventTOTPVerifyFailure, false, userID, "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}

	if err := e.credentialStore.PutTOTP(ctx, userID, TOTPCredential{
		EncryptedSecret: cred.EncryptedSecret,
		EnabledAt:       e.now(),
	}); err != nil {
		return ErrTOTPUnavailable
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, userID, "", nil, nil)
	return nil
}

// VerifyTOTP validates a code against the enabled credential and, on
// success, counts as a qualifying unlock for the session lock policy.
func (e *Engine) VerifyTOTP(ctx context.Context, userID, code string) error {
	if e == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if err := e.requireUnlockable(ctx, userID); err != nil {
		return err
	}
	if err := e.verifyTOTPCode(ctx, userID, code); err != nil {
		return err
	}

	if err := e.completeUnlock(ctx, userID, factorTOTP); err != nil {
		return err
	}

	e.metricInc(MetricTOTPVerifySuccess)
	e.metricInc(MetricSessionUnlock)
	e.emitAudit(ctx, auditEventTOTPVerifySuccess, true, userID, "", nil, nil)
	e.emitAudit(ctx, auditEventSessionUnlock, true, userID, "", nil, func() map[string]string {
		return map[string]string{"factor": "totp"}
	})
	return nil
}

// DisableTOTP removes the credential. Disabling requires a currently valid
// code so a hijacked session cannot silently strip the factor.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) error {
	if err := e.verifyTOTPCode(ctx, userID, code); err != nil {
		return err
	}

	if err := e.credentialStore.DeleteTOTP(ctx, userID); err != nil {
		return ErrTOTPUnavailable
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, userID, "", nil, nil)
	return nil
}

// verifyTOTPCode checks a code against the enabled credential without any
// unlock side effects. Regeneration proofs use it directly.
func (e *Engine) verifyTOTPCode(ctx context.Context, userID, code string) error {
	if e == nil || e.totp == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}

	cred, err := e.credentialStore.GetTOTP(ctx, userID)
	if err != nil || cred == nil || cred.EncryptedSecret == "" {
		return ErrTOTPNotConfigured
	}
	if !cred.Enabled() {
		return ErrTOTPNotEnabled
	}

	secret, err := keywrap.Unwrap(e.config.TOTP.SecretKey, cred.EncryptedSecret)
	if err != nil {
		return ErrTOTPUnavailable
	}

	ok, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return ErrTOTPUnavailable
	}
	if !ok {
		e.metricInc(MetricTOTPVerifyFailure)
		e.emitAudit(ctx, auditEventTOTPVerifyFailure, false, userID, "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}
	return nil
}

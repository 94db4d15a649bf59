package lockgate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/lockgate/lockgate/internal/rate"
)

const (
	rateScopeOTP      = "otp"
	rateScopeRegister = "register"
	rateScopePIN      = "pin"

	defaultRole = "user"
)

// RequestLoginCode issues a one-time login code for the identity and hands
// it to the configured [CodeSender]. The response is identical whether or
// not the identity resolves to an existing account; unknown identities are
// provisioned as pending accounts so the observable behavior stays flat.
func (e *Engine) RequestLoginCode(ctx context.Context, rawIdentity string) error {
	if e == nil || e.codeStore == nil || e.codeSender == nil {
		return ErrEngineNotReady
	}

	raw := strings.TrimSpace(rawIdentity)
	if raw == "" {
		return ErrIdentityInvalid
	}
	identityHash := e.hasher.Hash(raw)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rateScopeOTP, identityHash); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricCodeRateLimited)
				e.emitAudit(ctx, auditEventCodeRateLimited, false, "", identityHash, ErrRateLimited, nil)
				e.emitRateLimit(ctx, rateScopeOTP, identityHash, nil)
				return ErrRateLimited
			}
			return ErrCodeUnavailable
		}
	}

	account, err := e.credentialStore.GetAccountByIdentityHash(ctx, identityHash)
	if err != nil || account == nil {
		pending := AccountRecord{
			UserID:       uuid.NewString(),
			IdentityHash: identityHash,
			Role:         defaultRole,
			Status:       AccountPendingApproval,
			CreatedAt:    e.now(),
		}
		if err := e.credentialStore.CreateAccount(ctx, pending); err != nil {
			// The identity may have been created concurrently; a code is
			// issued either way so request timing does not reveal state.
			e.emitAudit(ctx, auditEventCodeRequested, false, "", identityHash, ErrStoreUnavailable, nil)
		}
	}

	code, err := newLoginCode(e.config.OTP.Digits)
	if err != nil {
		return ErrCodeUnavailable
	}

	now := e.now()
	record := &loginCodeRecord{
		CodeHash:  sha256.Sum256([]byte(code)),
		ExpiresAt: now.Add(e.config.OTP.CodeTTL).Unix(),
		CreatedAt: now.Unix(),
	}
	if err := e.codeStore.Save(ctx, identityHash, record, e.config.OTP.CodeTTL); err != nil {
		return ErrCodeUnavailable
	}

	if err := e.codeSender.Send(ctx, raw, code); err != nil {
		e.emitAudit(ctx, auditEventCodeRequested, false, "", identityHash, ErrCodeDeliveryFailed, nil)
		return ErrCodeDeliveryFailed
	}

	e.metricInc(MetricCodeRequested)
	e.emitAudit(ctx, auditEventCodeRequested, true, "", identityHash, nil, nil)
	return nil
}

// VerifyLoginCode consumes a previously issued login code. The code is
// deleted on first match, so a second submission of the same code fails
// even under concurrent verification attempts. On success a fresh session
// token is issued and the activity clock starts from now.
func (e *Engine) VerifyLoginCode(ctx context.Context, rawIdentity, code string) (*LoginResult, error) {
	if e == nil || e.codeStore == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	raw := strings.TrimSpace(rawIdentity)
	if raw == "" {
		return nil, ErrIdentityInvalid
	}
	if len(code) != e.config.OTP.Digits || !isNumericString(code) {
		return nil, ErrCodeInvalid
	}
	identityHash := e.hasher.Hash(raw)

	err := e.codeStore.Consume(ctx, identityHash, sha256.Sum256([]byte(code)), e.config.OTP.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, errCodeNotFound),
			errors.Is(err, errCodeMismatch),
			errors.Is(err, errCodeAttemptsExceeded):
			e.metricInc(MetricCodeVerifyFailure)
			e.emitAudit(ctx, auditEventCodeVerifyFailure, false, "", identityHash, ErrCodeInvalid, nil)
			return nil, ErrCodeInvalid
		default:
			return nil, ErrCodeUnavailable
		}
	}

	account, err := e.credentialStore.GetAccountByIdentityHash(ctx, identityHash)
	if err != nil || account == nil {
		e.metricInc(MetricCodeVerifyFailure)
		e.emitAudit(ctx, auditEventCodeVerifyFailure, false, "", identityHash, ErrCodeInvalid, nil)
		return nil, ErrCodeInvalid
	}
	if account.Status == AccountDisabled {
		e.metricInc(MetricCodeVerifyFailure)
		e.emitAudit(ctx, auditEventCodeVerifyFailure, false, account.UserID, identityHash, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	principal := Principal{UserID: account.UserID, Role: account.Role}
	token, err := e.issueSessionToken(principal)
	if err != nil {
		return nil, ErrEngineNotReady
	}
	if err := e.recordUnlock(ctx, account.UserID); err != nil {
		return nil, ErrActivityUnavailable
	}

	e.metricInc(MetricCodeVerifySuccess)
	e.emitAudit(ctx, auditEventCodeVerifySuccess, true, account.UserID, identityHash, nil, nil)
	return &LoginResult{Principal: principal, Token: token}, nil
}

// Register provisions a new account for the identity and returns the
// one-time disclosure bundle: a session token, TOTP provisioning data, and
// the plaintext seed phrase. None of the secrets in the bundle are
// retrievable again.
func (e *Engine) Register(ctx context.Context, rawIdentity string) (*RegistrationResult, error) {
	if e == nil || e.credentialStore == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	raw := strings.TrimSpace(rawIdentity)
	if raw == "" {
		return nil, ErrUsernameInvalid
	}
	identityHash := e.hasher.Hash(raw)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rateScopeRegister, identityHash); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitRateLimit(ctx, rateScopeRegister, identityHash, nil)
				return nil, ErrRateLimited
			}
			return nil, ErrStoreUnavailable
		}
	}

	if existing, err := e.credentialStore.GetAccountByIdentityHash(ctx, identityHash); err == nil && existing != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, existing.UserID, identityHash, ErrAccountExists, nil)
		return nil, ErrAccountExists
	}

	account := AccountRecord{
		UserID:       uuid.NewString(),
		IdentityHash: identityHash,
		Role:         defaultRole,
		Status:       AccountActive,
		CreatedAt:    e.now(),
	}
	if err := e.credentialStore.CreateAccount(ctx, account); err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, account.UserID, identityHash, ErrStoreUnavailable, nil)
		return nil, ErrStoreUnavailable
	}

	setup, err := e.provisionTOTP(ctx, account.UserID, raw)
	if err != nil {
		return nil, err
	}

	phrase, err := e.createSeedPhrase(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	principal := Principal{UserID: account.UserID, Role: account.Role}
	token, err := e.issueSessionToken(principal)
	if err != nil {
		return nil, ErrEngineNotReady
	}
	if err := e.recordUnlock(ctx, account.UserID); err != nil {
		return nil, ErrActivityUnavailable
	}

	e.metricInc(MetricRegistration)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, account.UserID, identityHash, nil, nil)
	return &RegistrationResult{
		UserID:     account.UserID,
		Token:      token,
		TOTP:       *setup,
		SeedPhrase: *phrase,
	}, nil
}

func newLoginCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

package lockgate

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/lockgate/lockgate/keywrap"
)

const (
	seedPhraseHashLabel = "seed-phrase"
	seedWrapInfoPrefix  = "lockgate:seed-wrap:"
)

// GenerateSeedPhrase produces the account's recovery phrase and escrows a
// fresh per-user key wrapped under a key derived from it. The plaintext
// words are returned exactly once; only the verification hash and the
// wrapped key are persisted. An account that already holds a phrase must
// use [Engine.RegenerateSeedPhrase] instead.
func (e *Engine) GenerateSeedPhrase(ctx context.Context, userID string) (*SeedPhraseResult, error) {
	if e == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing, err := e.credentialStore.GetSeedPhrase(ctx, account.UserID); err == nil && existing != nil && existing.PhraseHash != "" {
		return nil, ErrSeedPhraseExists
	}

	result, err := e.createSeedPhrase(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventSeedPhraseGenerated, true, account.UserID, "", nil, nil)
	return result, nil
}

// RecoverWithSeedPhrase verifies a candidate phrase for the identity and,
// when it matches, unwraps the per-user key and issues a fresh session.
// The server never stored the phrase; recovery works purely from the
// verification hash and the key derivation being repeatable.
func (e *Engine) RecoverWithSeedPhrase(ctx context.Context, rawIdentity, phrase string) (*RecoveryResult, error) {
	if e == nil || e.credentialStore == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	raw := strings.TrimSpace(rawIdentity)
	if raw == "" {
		return nil, ErrIdentityInvalid
	}
	identityHash := e.hasher.Hash(raw)

	normalized := normalizeSeedPhrase(phrase)
	if !bip39.IsMnemonicValid(normalized) {
		e.metricInc(MetricSeedPhraseRecoveryFailure)
		e.emitAudit(ctx, auditEventSeedPhraseRecoveryFail, false, "", identityHash, ErrSeedPhraseChecksum, nil)
		return nil, ErrSeedPhraseChecksum
	}

	account, err := e.credentialStore.GetAccountByIdentityHash(ctx, identityHash)
	if err != nil || account == nil {
		e.metricInc(MetricSeedPhraseRecoveryFailure)
		e.emitAudit(ctx, auditEventSeedPhraseRecoveryFail, false, "", identityHash, ErrSeedPhraseInvalid, nil)
		return nil, ErrSeedPhraseInvalid
	}

	cred, err := e.credentialStore.GetSeedPhrase(ctx, account.UserID)
	if err != nil || cred == nil || cred.PhraseHash == "" {
		e.metricInc(MetricSeedPhraseRecoveryFailure)
		e.emitAudit(ctx, auditEventSeedPhraseRecoveryFail, false, account.UserID, identityHash, ErrSeedPhraseNotConfigured, nil)
		return nil, ErrSeedPhraseNotConfigured
	}

	candidate := e.hasher.HashWithLabel(seedPhraseHashLabel, normalized)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(cred.PhraseHash)) != 1 {
		e.metricInc(MetricSeedPhraseRecoveryFailure)
		e.emitAudit(ctx, auditEventSeedPhraseRecoveryFail, false, account.UserID, identityHash, ErrSeedPhraseInvalid, nil)
		return nil, ErrSeedPhraseInvalid
	}

	wrapKey, err := keywrap.DeriveKey(bip39.NewSeed(normalized, ""), seedWrapInfoPrefix+account.UserID)
	if err != nil {
		return nil, ErrSeedPhraseUnavailable
	}
	userKey, err := keywrap.Unwrap(wrapKey, cred.EncryptedUserKey)
	if err != nil {
		e.metricInc(MetricSeedPhraseRecoveryFailure)
		e.emitAudit(ctx, auditEventSeedPhraseRecoveryFail, false, account.UserID, identityHash, ErrSeedPhraseInvalid, nil)
		return nil, ErrSeedPhraseInvalid
	}

	principal := Principal{UserID: account.UserID, Role: account.Role}
	token, err := e.issueSessionToken(principal)
	if err != nil {
		return nil, ErrEngineNotReady
	}
	if err := e.recordUnlock(ctx, account.UserID); err != nil {
		return nil, ErrActivityUnavailable
	}

	e.metricInc(MetricSeedPhraseRecovered)
	e.emitAudit(ctx, auditEventSeedPhraseRecovered, true, account.UserID, identityHash, nil, nil)
	return &RecoveryResult{
		Principal: principal,
		UserKey:   userKey,
		Token:     token,
	}, nil
}

// RegenerateSeedPhrase replaces the stored phrase hash and wrapped key in a
// single write, after proof through an already enrolled factor: a valid
// TOTP code when TOTP is enabled, otherwise the account's PIN. The previous
// phrase stops verifying the moment the write lands.
func (e *Engine) RegenerateSeedPhrase(ctx context.Context, userID, verificationCode string) (*SeedPhraseResult, error) {
	if e == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := e.credentialStore.GetSeedPhrase(ctx, account.UserID)
	if err != nil || existing == nil || existing.PhraseHash == "" {
		return nil, ErrSeedPhraseNotConfigured
	}

	if err := e.proveEnrolledFactor(ctx, account.UserID, verificationCode); err != nil {
		e.emitAudit(ctx, auditEventSeedPhraseRegenerated, false, account.UserID, "", err, nil)
		return nil, err
	}

	result, err := e.createSeedPhrase(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSeedPhraseRegenerated)
	e.emitAudit(ctx, auditEventSeedPhraseRegenerated, true, account.UserID, "", nil, nil)
	return result, nil
}

// proveEnrolledFactor validates the regeneration proof. TOTP takes
// precedence when enabled; without any enrolled factor regeneration is
// refused rather than granted freely.
func (e *Engine) proveEnrolledFactor(ctx context.Context, userID, code string) error {
	totpCred, err := e.credentialStore.GetTOTP(ctx, userID)
	if err == nil && totpCred.Enabled() {
		if err := e.verifyTOTPCode(ctx, userID, code); err != nil {
			return ErrSeedPhraseProofRequired
		}
		return nil
	}

	pinCred, err := e.credentialStore.GetPIN(ctx, userID)
	if err == nil && pinCred != nil && pinCred.Encoded != "" {
		res, err := e.VerifyPIN(ctx, userID, code)
		if err != nil || !res.Success {
			return ErrSeedPhraseProofRequired
		}
		return nil
	}

	return ErrSeedPhraseProofRequired
}

func (e *Engine) createSeedPhrase(ctx context.Context, userID string) (*SeedPhraseResult, error) {
	entropy, err := bip39.NewEntropy(e.config.SeedPhrase.EntropyBits)
	if err != nil {
		return nil, ErrSeedPhraseUnavailable
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, ErrSeedPhraseUnavailable
	}

	userKey := make([]byte, keywrap.KeySize)
	if _, err := rand.Read(userKey); err != nil {
		return nil, ErrSeedPhraseUnavailable
	}

	wrapKey, err := keywrap.DeriveKey(bip39.NewSeed(mnemonic, ""), seedWrapInfoPrefix+userID)
	if err != nil {
		return nil, ErrSeedPhraseUnavailable
	}
	wrapped, err := keywrap.Wrap(wrapKey, userKey)
	if err != nil {
		return nil, ErrSeedPhraseUnavailable
	}

	now := e.now()
	if err := e.credentialStore.PutSeedPhrase(ctx, userID, SeedPhraseCredential{
		PhraseHash:       e.hasher.HashWithLabel(seedPhraseHashLabel, mnemonic),
		EncryptedUserKey: wrapped,
		CreatedAt:        now,
	}); err != nil {
		return nil, ErrSeedPhraseUnavailable
	}

	e.metricInc(MetricSeedPhraseGenerated)
	return &SeedPhraseResult{
		Words:     strings.Fields(mnemonic),
		CreatedAt: now,
	}, nil
}

// normalizeSeedPhrase lowercases the candidate and collapses whitespace so
// transcription quirks do not change the verification hash.
func normalizeSeedPhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

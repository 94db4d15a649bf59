package lockgate

import (
	"bytes"
	"context"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	ceremonyRegister = "register"
	ceremonyLogin    = "login"

	deviceTypeSingle = "single_device"
	deviceTypeMulti  = "multi_device"
)

// webauthnUser adapts an account and its stored passkey credentials to the
// go-webauthn User interface. The WebAuthn identity is the account id, so
// authenticators never see the raw identity either.
type webauthnUser struct {
	id    string
	creds []PasskeyCredential
}

func (u *webauthnUser) WebAuthnID() []byte          { return []byte(u.id) }
func (u *webauthnUser) WebAuthnName() string        { return u.id }
func (u *webauthnUser) WebAuthnDisplayName() string { return u.id }
func (u *webauthnUser) WebAuthnIcon() string        { return "" }

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
		for _, t := range c.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		out = append(out, webauthn.Credential{
			ID:        c.CredentialID,
			PublicKey: c.PublicKey,
			Transport: transports,
			Flags: webauthn.CredentialFlags{
				BackupEligible: c.DeviceType == deviceTypeMulti,
				BackupState:    c.BackedUp,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		})
	}
	return out
}

func (e *Engine) webauthnUserFor(ctx context.Context, userID string) (*webauthnUser, error) {
	creds, err := e.credentialStore.ListPasskeys(ctx, userID)
	if err != nil {
		return nil, ErrPasskeyUnavailable
	}
	return &webauthnUser{id: userID, creds: creds}, nil
}

// BeginPasskeyRegistration starts a WebAuthn attestation ceremony. The
// ceremony state lives in Redis under the challenge TTL; already registered
// credential ids are excluded so an authenticator is never enrolled twice.
func (e *Engine) BeginPasskeyRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	if e == nil || e.webAuthn == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := e.webauthnUserFor(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.creds))
	for _, c := range user.creds {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: c.CredentialID,
		})
	}

	options, session, err := e.webAuthn.BeginRegistration(
		user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			UserVerification:        protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, ErrPasskeyUnavailable
	}

	if err := e.challengeStore.Put(ctx, account.UserID, ceremonyRegister, session); err != nil {
		return nil, ErrPasskeyUnavailable
	}
	return options, nil
}

// FinishPasskeyRegistration consumes the pending ceremony state, verifies
// the attestation response against it, and persists the new credential.
// The ceremony state is single use regardless of outcome.
func (e *Engine) FinishPasskeyRegistration(ctx context.Context, userID string, response []byte) error {
	if e == nil || e.webAuthn == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}

	session, err := e.challengeStore.Consume(ctx, userID, ceremonyRegister)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrPasskeyChallengeExpired
		}
		return ErrPasskeyUnavailable
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		e.metricInc(MetricPasskeyAuthFailure)
		e.emitAudit(ctx, auditEventPasskeyAuthFailure, false, userID, "", ErrPasskeyInvalid, nil)
		return ErrPasskeyInvalid
	}

	user, err := e.webauthnUserFor(ctx, userID)
	if err != nil {
		return err
	}

	cred, err := e.webAuthn.CreateCredential(user, *session, parsed)
	if err != nil {
		e.metricInc(MetricPasskeyAuthFailure)
		e.emitAudit(ctx, auditEventPasskeyAuthFailure, false, userID, "", ErrPasskeyInvalid, nil)
		return ErrPasskeyInvalid
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}
	deviceType := deviceTypeSingle
	if cred.Flags.BackupEligible {
		deviceType = deviceTypeMulti
	}
	if err := e.credentialStore.AddPasskey(ctx, userID, PasskeyCredential{
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		SignCount:    cred.Authenticator.SignCount,
		Transports:   transports,
		DeviceType:   deviceType,
		BackedUp:     cred.Flags.BackupState,
		CreatedAt:    e.now(),
	}); err != nil {
		return ErrPasskeyUnavailable
	}

	e.metricInc(MetricPasskeyRegistered)
	e.emitAudit(ctx, auditEventPasskeyRegistered, true, userID, "", nil, nil)
	return nil
}

// BeginPasskeyLogin starts a WebAuthn assertion ceremony restricted to the
// account's registered credential ids.
func (e *Engine) BeginPasskeyLogin(ctx context.Context, userID string) (*protocol.CredentialAssertion, error) {
	if e == nil || e.webAuthn == nil || e.credentialStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}

	user, err := e.webauthnUserFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.creds) == 0 {
		return nil, ErrPasskeyNotConfigured
	}

	options, session, err := e.webAuthn.BeginLogin(user)
	if err != nil {
		return nil, ErrPasskeyUnavailable
	}

	if err := e.challengeStore.Put(ctx, userID, ceremonyLogin, session); err != nil {
		return nil, ErrPasskeyUnavailable
	}
	return options, nil
}

// FinishPasskeyLogin verifies the assertion against the pending ceremony
// state, enforces sign-counter monotonicity with a compare-and-set against
// the previously stored value, and counts as a qualifying unlock. A counter
// that fails to advance is treated as a cloned-authenticator replay.
func (e *Engine) FinishPasskeyLogin(ctx context.Context, userID string, response []byte) error {
	if e == nil || e.webAuthn == nil || e.credentialStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}

	if err := e.requireUnlockable(ctx, userID); err != nil {
		return err
	}

	session, err := e.challengeStore.Consume(ctx, userID, ceremonyLogin)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrPasskeyChallengeExpired
		}
		return ErrPasskeyUnavailable
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		e.metricInc(MetricPasskeyAuthFailure)
		e.emitAudit(ctx, auditEventPasskeyAuthFailure, false, userID, "", ErrPasskeyInvalid, nil)
		return ErrPasskeyInvalid
	}

	user, err := e.webauthnUserFor(ctx, userID)
	if err != nil {
		return err
	}
	if len(user.creds) == 0 {
		return ErrPasskeyNotConfigured
	}

	cred, err := e.webAuthn.ValidateLogin(user, *session, parsed)
	if err != nil {
		e.metricInc(MetricPasskeyAuthFailure)
		e.emitAudit(ctx, auditEventPasskeyAuthFailure, false, userID, "", ErrPasskeyInvalid, nil)
		return ErrPasskeyInvalid
	}

	var stored *PasskeyCredential
	for i := range user.creds {
		if bytes.Equal(user.creds[i].CredentialID, cred.ID) {
			stored = &user.creds[i]
			break
		}
	}
	if stored == nil {
		return ErrPasskeyInvalid
	}

	newCount := cred.Authenticator.SignCount
	zeroAllowed := e.config.Passkey.AllowZeroCounter && newCount == 0 && stored.SignCount == 0
	if newCount <= stored.SignCount && !zeroAllowed {
		e.metricInc(MetricPasskeyCounterReplay)
		e.emitAudit(ctx, auditEventPasskeyCounterReplay, false, userID, "", ErrPasskeyCounterReplay, nil)
		return ErrPasskeyCounterReplay
	}

	ok, err := e.credentialStore.UpdatePasskeySignCount(ctx, userID, cred.ID, stored.SignCount, newCount, e.now())
	if err != nil {
		return ErrPasskeyUnavailable
	}
	if !ok {
		// A concurrent assertion advanced the counter first.
		e.metricInc(MetricPasskeyCounterReplay)
		e.emitAudit(ctx, auditEventPasskeyCounterReplay, false, userID, "", ErrPasskeyCounterReplay, nil)
		return ErrPasskeyCounterReplay
	}

	if err := e.completeUnlock(ctx, userID, factorPasskey); err != nil {
		return err
	}

	e.metricInc(MetricPasskeyAuthSuccess)
	e.metricInc(MetricSessionUnlock)
	e.emitAudit(ctx, auditEventPasskeyAuthSuccess, true, userID, "", nil, nil)
	e.emitAudit(ctx, auditEventSessionUnlock, true, userID, "", nil, func() map[string]string {
		return map[string]string{"factor": "passkey"}
	})
	return nil
}

package lockgate

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the security engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredential is an exported constant or variable used by the security engine.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountNotFound is an exported constant or variable used by the security engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEngineNotReady is an exported constant or variable used by the security engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrRateLimited is an exported constant or variable used by the security engine.
	ErrRateLimited = errors.New("rate limited")

	// ErrCodeInvalid is an exported constant or variable used by the security engine.
	ErrCodeInvalid = errors.New("invalid login code")
	// ErrCodeDeliveryFailed is an exported constant or variable used by the security engine.
	ErrCodeDeliveryFailed = errors.New("login code delivery failed")
	// ErrCodeUnavailable is an exported constant or variable used by the security engine.
	ErrCodeUnavailable = errors.New("login code backend unavailable")

	// ErrIdentityInvalid is an exported constant or variable used by the security engine.
	ErrIdentityInvalid = errors.New("invalid identity")
	// ErrUsernameInvalid is an exported constant or variable used by the security engine.
	ErrUsernameInvalid = errors.New("invalid username")
	// ErrAccountExists is an exported constant or variable used by the security engine.
	ErrAccountExists = errors.New("account already exists")

	// ErrPINFormat is an exported constant or variable used by the security engine.
	ErrPINFormat = errors.New("pin must be exactly six digits")
	// ErrPINInvalid is an exported constant or variable used by the security engine.
	ErrPINInvalid = errors.New("invalid pin")
	// ErrPINLocked is an exported constant or variable used by the security engine.
	ErrPINLocked = errors.New("pin verification locked")
	// ErrPINNotConfigured is an exported constant or variable used by the security engine.
	ErrPINNotConfigured = errors.New("pin not configured")
	// ErrPINUnavailable is an exported constant or variable used by the security engine.
	ErrPINUnavailable = errors.New("pin backend unavailable")

	// ErrTOTPInvalid is an exported constant or variable used by the security engine.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is an exported constant or variable used by the security engine.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTOTPAlreadyEnabled is an exported constant or variable used by the security engine.
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	// ErrTOTPNotEnabled is an exported constant or variable used by the security engine.
	ErrTOTPNotEnabled = errors.New("totp not enabled")
	// ErrTOTPUnavailable is an exported constant or variable used by the security engine.
	ErrTOTPUnavailable = errors.New("totp backend unavailable")

	// ErrPasskeyInvalid is an exported constant or variable used by the security engine.
	ErrPasskeyInvalid = errors.New("invalid passkey response")
	// ErrPasskeyChallengeExpired is an exported constant or variable used by the security engine.
	ErrPasskeyChallengeExpired = errors.New("passkey challenge expired")
	// ErrPasskeyCounterReplay is an exported constant or variable used by the security engine.
	ErrPasskeyCounterReplay = errors.New("passkey counter replay detected")
	// ErrPasskeyNotConfigured is an exported constant or variable used by the security engine.
	ErrPasskeyNotConfigured = errors.New("no passkey registered")
	// ErrPasskeyUnavailable is an exported constant or variable used by the security engine.
	ErrPasskeyUnavailable = errors.New("passkey backend unavailable")

	// ErrSeedPhraseInvalid is an exported constant or variable used by the security engine.
	ErrSeedPhraseInvalid = errors.New("invalid seed phrase")
	// ErrSeedPhraseChecksum is an exported constant or variable used by the security engine.
	ErrSeedPhraseChecksum = errors.New("seed phrase checksum invalid")
	// ErrSeedPhraseExists is an exported constant or variable used by the security engine.
	ErrSeedPhraseExists = errors.New("seed phrase already generated")
	// ErrSeedPhraseNotConfigured is an exported constant or variable used by the security engine.
	ErrSeedPhraseNotConfigured = errors.New("seed phrase not configured")
	// ErrSeedPhraseProofRequired is an exported constant or variable used by the security engine.
	ErrSeedPhraseProofRequired = errors.New("seed phrase regeneration requires factor proof")
	// ErrSeedPhraseUnavailable is an exported constant or variable used by the security engine.
	ErrSeedPhraseUnavailable = errors.New("seed phrase backend unavailable")

	// ErrFullLoginRequired is an exported constant or variable used by the security engine.
	ErrFullLoginRequired = errors.New("full login required")
	// ErrUnlockNotSatisfied is an exported constant or variable used by the security engine.
	ErrUnlockNotSatisfied = errors.New("required unlock factor not satisfied")
	// ErrActivityUnavailable is an exported constant or variable used by the security engine.
	ErrActivityUnavailable = errors.New("session activity backend unavailable")

	// ErrStoreUnavailable is an exported constant or variable used by the security engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrTokenInvalid is an exported constant or variable used by the security engine.
	ErrTokenInvalid = errors.New("invalid session token")
)

package lockgate

import (
	"context"
	"time"
)

// LockLevel is the unlock tier a session must clear before protected
// operations are allowed. Levels are ordered by severity.
type LockLevel uint8

const (
	// LockNone is an exported constant or variable used by the security engine.
	LockNone LockLevel = iota
	// LockBiometric is an exported constant or variable used by the security engine.
	LockBiometric
	// LockPIN is an exported constant or variable used by the security engine.
	LockPIN
	// LockPINPlusTOTP is an exported constant or variable used by the security engine.
	LockPINPlusTOTP
	// LockFullLogin is an exported constant or variable used by the security engine.
	LockFullLogin
)

// String returns the wire name of the lock level.
func (l LockLevel) String() string {
	switch l {
	case LockNone:
		return "none"
	case LockBiometric:
		return "biometric"
	case LockPIN:
		return "pin"
	case LockPINPlusTOTP:
		return "pin_plus_totp"
	case LockFullLogin:
		return "full_login"
	default:
		return "unknown"
	}
}

// AccountStatus represents the lifecycle state of an account.
type AccountStatus uint8

const (
	// AccountActive is an exported constant or variable used by the security engine.
	AccountActive AccountStatus = iota
	// AccountPendingApproval is an exported constant or variable used by the security engine.
	AccountPendingApproval
	// AccountDisabled is an exported constant or variable used by the security engine.
	AccountDisabled
)

// Principal is the authenticated identity every protected operation
// consumes. It is carried in the session token and never contains the raw
// identity string.
type Principal struct {
	UserID string
	Role   string
}

// AccountRecord is the account row returned by [CredentialStore]. The
// IdentityHash column is the only identity ever persisted.
type AccountRecord struct {
	UserID       string
	IdentityHash string
	Role         string
	Status       AccountStatus
	CreatedAt    time.Time
}

// PINCredential is the stored PIN verifier. Encoded carries the
// pbkdf2 parameters, salt, and hash in a single opaque string.
type PINCredential struct {
	Encoded string
	SetAt   time.Time
}

// TOTPCredential is the stored TOTP secret, encrypted at rest. EnabledAt is
// zero until the holder proves possession with one valid code.
type TOTPCredential struct {
	EncryptedSecret string
	EnabledAt       time.Time
}

// Enabled reports whether setup was confirmed with a valid code.
func (c *TOTPCredential) Enabled() bool {
	return c != nil && !c.EnabledAt.IsZero()
}

// PasskeyCredential is a stored WebAuthn credential. SignCount must only
// ever move forward; UpdateSignCount enforces that with a compare-and-set.
type PasskeyCredential struct {
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	DeviceType   string
	BackedUp     bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// SeedPhraseCredential is the stored recovery record: a one-way hash of the
// normalized phrase and the per-user key wrapped under a phrase-derived key.
// The plaintext phrase itself is never persisted.
type SeedPhraseCredential struct {
	PhraseHash       string
	EncryptedUserKey string
	CreatedAt        time.Time
}

// CredentialStore is the primary interface that callers must implement to
// integrate lockgate with their database. It covers account lookup and the
// durable credential records of every unlock factor. Implementations must
// return [ErrAccountNotFound]-wrapped errors (or plain sql.ErrNoRows mapped
// by the host) as nil-record, non-nil-error pairs; the engine treats any
// lookup error as a miss and never distinguishes them in user-facing text.
type CredentialStore interface {
	GetAccountByIdentityHash(ctx context.Context, identityHash string) (*AccountRecord, error)
	GetAccountByID(ctx context.Context, userID string) (*AccountRecord, error)
	CreateAccount(ctx context.Context, account AccountRecord) error

	GetPIN(ctx context.Context, userID string) (*PINCredential, error)
	PutPIN(ctx context.Context, userID string, cred PINCredential) error

	GetTOTP(ctx context.Context, userID string) (*TOTPCredential, error)
	PutTOTP(ctx context.Context, userID string, cred TOTPCredential) error
	DeleteTOTP(ctx context.Context, userID string) error

	ListPasskeys(ctx context.Context, userID string) ([]PasskeyCredential, error)
	AddPasskey(ctx context.Context, userID string, cred PasskeyCredential) error
	// UpdatePasskeySignCount persists newCount for the credential only if the
	// stored count still equals prevCount. It returns false when the
	// compare-and-set lost, so concurrent assertions cannot roll the counter
	// back.
	UpdatePasskeySignCount(ctx context.Context, userID string, credentialID []byte, prevCount, newCount uint32, usedAt time.Time) (bool, error)

	GetSeedPhrase(ctx context.Context, userID string) (*SeedPhraseCredential, error)
	PutSeedPhrase(ctx context.Context, userID string, cred SeedPhraseCredential) error
}

// CodeSender delivers a login code out of band (email, SMS). The engine
// passes the raw identity only here and never logs it.
type CodeSender interface {
	Send(ctx context.Context, rawIdentity, code string) error
}

// SessionStatus is returned by [Engine.SessionStatus].
type SessionStatus struct {
	LockLevel        LockLevel
	AvailableMethods []string
	IdleMinutes      int
}

// PINVerifyResult reports the outcome of a PIN attempt. When Locked is true,
// RetryAfter is the remaining lockout window; otherwise AttemptsRemaining
// counts the failures left before lockout.
type PINVerifyResult struct {
	Success           bool
	AttemptsRemaining int
	Locked            bool
	RetryAfter        time.Duration
}

// TOTPSetup holds the base32 secret and otpauth:// provisioning URI returned
// by [Engine.ProvisionTOTP]. The secret is shown to the holder exactly once.
type TOTPSetup struct {
	SecretBase32 string
	URI          string
}

// SeedPhraseResult carries the one-time plaintext mnemonic. It is never
// retrievable again after this response.
type SeedPhraseResult struct {
	Words     []string
	CreatedAt time.Time
}

// RecoveryResult is returned by a successful seed-phrase recovery: the
// unwrapped per-user key, the recovered principal, and a fresh session token.
type RecoveryResult struct {
	Principal Principal
	UserKey   []byte
	Token     string
}

// LoginResult is returned by a successful OTP verification.
type LoginResult struct {
	Principal Principal
	Token     string
}

// RegistrationResult is the one-time disclosure bundle returned by
// [Engine.Register]: account id, TOTP provisioning data, and seed phrase.
type RegistrationResult struct {
	UserID     string
	Token      string
	TOTP       TOTPSetup
	SeedPhrase SeedPhraseResult
}

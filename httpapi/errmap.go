package httpapi

import (
	"errors"
	"net/http"

	lockgate "github.com/lockgate/lockgate"
)

// writeEngineError maps engine errors onto HTTP statuses and stable error
// codes. Authentication failures collapse onto 401 regardless of factor so
// responses do not reveal which check rejected the attempt. Conflicts and
// unconfigured factors both report as 400; the error code string carries
// the distinction.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lockgate.ErrRateLimited),
		errors.Is(err, lockgate.ErrPINLocked):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")

	case errors.Is(err, lockgate.ErrIdentityInvalid),
		errors.Is(err, lockgate.ErrUsernameInvalid),
		errors.Is(err, lockgate.ErrPINFormat),
		errors.Is(err, lockgate.ErrSeedPhraseChecksum),
		errors.Is(err, lockgate.ErrPasskeyChallengeExpired):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")

	case errors.Is(err, lockgate.ErrAccountExists),
		errors.Is(err, lockgate.ErrTOTPAlreadyEnabled),
		errors.Is(err, lockgate.ErrSeedPhraseExists):
		writeError(w, http.StatusBadRequest, "conflict", "already exists")

	case errors.Is(err, lockgate.ErrAccountNotFound),
		errors.Is(err, lockgate.ErrPINNotConfigured),
		errors.Is(err, lockgate.ErrTOTPNotConfigured),
		errors.Is(err, lockgate.ErrTOTPNotEnabled),
		errors.Is(err, lockgate.ErrPasskeyNotConfigured),
		errors.Is(err, lockgate.ErrSeedPhraseNotConfigured):
		writeError(w, http.StatusBadRequest, "not_configured", "not configured")

	case errors.Is(err, lockgate.ErrFullLoginRequired),
		errors.Is(err, lockgate.ErrSeedPhraseProofRequired),
		errors.Is(err, lockgate.ErrUnlockNotSatisfied):
		writeError(w, http.StatusForbidden, "forbidden", "additional proof required")

	case errors.Is(err, lockgate.ErrCodeUnavailable),
		errors.Is(err, lockgate.ErrPINUnavailable),
		errors.Is(err, lockgate.ErrTOTPUnavailable),
		errors.Is(err, lockgate.ErrPasskeyUnavailable),
		errors.Is(err, lockgate.ErrSeedPhraseUnavailable),
		errors.Is(err, lockgate.ErrActivityUnavailable),
		errors.Is(err, lockgate.ErrStoreUnavailable),
		errors.Is(err, lockgate.ErrCodeDeliveryFailed),
		errors.Is(err, lockgate.ErrEngineNotReady):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable")

	default:
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
}

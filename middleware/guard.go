package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	lockgate "github.com/lockgate/lockgate"
)

// PrincipalFromContext returns the principal stored by [Guard]. It is a
// convenience alias for [lockgate.PrincipalFromContext]; both read the same
// context entry.
func PrincipalFromContext(ctx context.Context) (lockgate.Principal, bool) {
	return lockgate.PrincipalFromContext(ctx)
}

// Guard authenticates the bearer token and stores the principal on the
// request context. It does not evaluate the lock tier; wrap handlers in
// [RequireUnlocked] for that.
func Guard(engine *lockgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			principal, err := engine.ParseSessionToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := lockgate.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUnlocked refuses requests whose session lock tier is not none. The
// response names the required tier and the unlock methods that can clear
// it. Must run inside [Guard].
func RequireUnlocked(engine *lockgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || engine == nil {
				unauthorized(w)
				return
			}

			status, err := engine.SessionStatus(r.Context(), principal.UserID)
			if err != nil {
				unauthorized(w)
				return
			}
			if status.LockLevel != lockgate.LockNone {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusLocked)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":            "session_locked",
					"lockLevel":        status.LockLevel.String(),
					"availableMethods": status.AvailableMethods,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Package httpapi exposes the lockgate factor surface as a JSON HTTP API.
//
// Public routes are limited to cold login, registration, and seed-phrase
// recovery; everything else runs behind the middleware guard and consumes
// the principal it extracts. No handler ever echoes a secret back except
// the documented one-time disclosures.
package httpapi

import (
	"net/http"
	"time"

	lockgate "github.com/lockgate/lockgate"
	"github.com/lockgate/lockgate/middleware"
)

// Server wires the engine's operations onto an http.ServeMux.
type Server struct {
	engine  *lockgate.Engine
	mux     *http.ServeMux
	metrics http.Handler
}

// NewServer builds the route table. The metrics handler is optional; pass
// nil to disable the /metrics route.
func NewServer(engine *lockgate.Engine, metricsHandler http.Handler) *Server {
	s := &Server{
		engine:  engine,
		mux:     http.NewServeMux(),
		metrics: metricsHandler,
	}

	guard := middleware.Guard(engine)
	protect := func(h http.HandlerFunc) http.Handler {
		return guard(h)
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}

	s.mux.HandleFunc("/v1/otp/request", s.handleOTPRequest)
	s.mux.HandleFunc("/v1/otp/verify", s.handleOTPVerify)
	s.mux.HandleFunc("/v1/register", s.handleRegister)
	s.mux.HandleFunc("/v1/seed-phrase/verify", s.handleSeedPhraseVerify)

	s.mux.Handle("/v1/pin/setup", protect(s.handlePINSetup))
	s.mux.Handle("/v1/pin/verify", protect(s.handlePINVerify))
	s.mux.Handle("/v1/totp/setup", protect(s.handleTOTPSetup))
	s.mux.Handle("/v1/totp/verify", protect(s.handleTOTPVerify))
	s.mux.Handle("/v1/totp/disable", protect(s.handleTOTPDisable))
	s.mux.Handle("/v1/passkey/register-options", protect(s.handlePasskeyRegisterOptions))
	s.mux.Handle("/v1/passkey/register-verify", protect(s.handlePasskeyRegisterVerify))
	s.mux.Handle("/v1/passkey/authenticate-options", protect(s.handlePasskeyAuthOptions))
	s.mux.Handle("/v1/passkey/authenticate-verify", protect(s.handlePasskeyAuthVerify))
	s.mux.Handle("/v1/seed-phrase/setup", protect(s.handleSeedPhraseSetup))
	s.mux.Handle("/v1/seed-phrase/regenerate", protect(s.handleSeedPhraseRegenerate))
	s.mux.Handle("/v1/session/status", protect(s.handleSessionStatus))

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

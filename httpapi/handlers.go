package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	lockgate "github.com/lockgate/lockgate"
	"github.com/lockgate/lockgate/middleware"
)

type otpRequestBody struct {
	Email string `json:"email"`
}

type otpVerifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type registerBody struct {
	Username string `json:"username"`
}

type pinBody struct {
	PIN string `json:"pin"`
}

type codeBody struct {
	Code string `json:"code"`
}

type passkeyResponseBody struct {
	Response json.RawMessage `json:"response"`
}

type seedPhraseVerifyBody struct {
	Email      string `json:"email"`
	SeedPhrase string `json:"seedPhrase"`
}

type seedPhraseRegenerateBody struct {
	VerificationCode  string `json:"verificationCode"`
	ConfirmRegenerate bool   `json:"confirmRegenerate"`
}

func (s *Server) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req otpRequestBody
	if !decodePost(w, r, &req) {
		return
	}

	if err := s.engine.RequestLoginCode(r.Context(), req.Email); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyBody
	if !decodePost(w, r, &req) {
		return
	}

	result, err := s.engine.VerifyLoginCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  result.Principal.UserID,
		"token":   result.Token,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerBody
	if !decodePost(w, r, &req) {
		return
	}

	result, err := s.engine.Register(r.Context(), req.Username)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  result.UserID,
		"token":   result.Token,
		"totp": map[string]any{
			"secret": result.TOTP.SecretBase32,
			"uri":    result.TOTP.URI,
		},
		"seedPhrase": map[string]any{
			"words":   result.SeedPhrase.Words,
			"warning": "Write these words down now. They are never shown again.",
		},
	})
}

func (s *Server) handlePINSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req pinBody
	if !decodePost(w, r, &req) {
		return
	}

	if err := s.engine.SetupPIN(r.Context(), principal.UserID, req.PIN); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePINVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req pinBody
	if !decodePost(w, r, &req) {
		return
	}

	result, err := s.engine.VerifyPIN(r.Context(), principal.UserID, req.PIN)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if result.Locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success":          false,
			"locked":           true,
			"remainingSeconds": int(result.RetryAfter.Seconds()),
		})
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":           false,
			"attemptsRemaining": result.AttemptsRemaining,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	setup, err := s.engine.ProvisionTOTP(r.Context(), principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret": setup.SecretBase32,
		"uri":    setup.URI,
	})
}

func (s *Server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req codeBody
	if !decodePost(w, r, &req) {
		return
	}

	// Setup confirmation and unlock verification share the endpoint: a
	// pending credential is confirmed, an enabled one is verified.
	if err := s.engine.ConfirmTOTPSetup(r.Context(), principal.UserID, req.Code); err != nil {
		if !errors.Is(err, lockgate.ErrTOTPAlreadyEnabled) {
			writeEngineError(w, err)
			return
		}
		if err := s.engine.VerifyTOTP(r.Context(), principal.UserID, req.Code); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req codeBody
	if !decodePost(w, r, &req) {
		return
	}

	if err := s.engine.DisableTOTP(r.Context(), principal.UserID, req.Code); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePasskeyRegisterOptions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	options, err := s.engine.BeginPasskeyRegistration(r.Context(), principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handlePasskeyRegisterVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req passkeyResponseBody
	if !decodePost(w, r, &req) {
		return
	}

	if err := s.engine.FinishPasskeyRegistration(r.Context(), principal.UserID, req.Response); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePasskeyAuthOptions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	options, err := s.engine.BeginPasskeyLogin(r.Context(), principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handlePasskeyAuthVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req passkeyResponseBody
	if !decodePost(w, r, &req) {
		return
	}

	if err := s.engine.FinishPasskeyLogin(r.Context(), principal.UserID, req.Response); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSeedPhraseSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	result, err := s.engine.GenerateSeedPhrase(r.Context(), principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seedPhrase": result.Words,
		"warning":    "Write these words down now. They are never shown again.",
	})
}

func (s *Server) handleSeedPhraseVerify(w http.ResponseWriter, r *http.Request) {
	var req seedPhraseVerifyBody
	if !decodePost(w, r, &req) {
		return
	}

	result, err := s.engine.RecoverWithSeedPhrase(r.Context(), req.Email, req.SeedPhrase)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  result.Principal.UserID,
		"token":   result.Token,
	})
}

func (s *Server) handleSeedPhraseRegenerate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req seedPhraseRegenerateBody
	if !decodePost(w, r, &req) {
		return
	}
	if !req.ConfirmRegenerate {
		writeError(w, http.StatusBadRequest, "confirmation_required", "set confirmRegenerate to proceed")
		return
	}

	result, err := s.engine.RegenerateSeedPhrase(r.Context(), principal.UserID, req.VerificationCode)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seedPhrase": result.Words,
		"warning":    "The previous phrase is no longer valid.",
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	status, err := s.engine.SessionStatus(r.Context(), principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lockLevel":        status.LockLevel.String(),
		"availableMethods": status.AvailableMethods,
		"idleMinutes":      status.IdleMinutes,
	})
}

func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (lockgate.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	return principal, ok
}

func decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return false
	}
	return true
}

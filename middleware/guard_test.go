package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	lockgate "github.com/lockgate/lockgate"
)

type memStore struct {
	mu       sync.Mutex
	accounts map[string]lockgate.AccountRecord
	pins     map[string]lockgate.PINCredential
	totps    map[string]lockgate.TOTPCredential
	passkeys map[string][]lockgate.PasskeyCredential
	seeds    map[string]lockgate.SeedPhraseCredential
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]lockgate.AccountRecord),
		pins:     make(map[string]lockgate.PINCredential),
		totps:    make(map[string]lockgate.TOTPCredential),
		passkeys: make(map[string][]lockgate.PasskeyCredential),
		seeds:    make(map[string]lockgate.SeedPhraseCredential),
	}
}

func (s *memStore) GetAccountByIdentityHash(_ context.Context, identityHash string) (*lockgate.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.IdentityHash == identityHash {
			record := a
			return &record, nil
		}
	}
	return nil, lockgate.ErrAccountNotFound
}

func (s *memStore) GetAccountByID(_ context.Context, userID string) (*lockgate.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, lockgate.ErrAccountNotFound
	}
	record := a
	return &record, nil
}

func (s *memStore) CreateAccount(_ context.Context, account lockgate.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserID] = account
	return nil
}

func (s *memStore) GetPIN(_ context.Context, userID string) (*lockgate.PINCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.pins[userID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (s *memStore) PutPIN(_ context.Context, userID string, cred lockgate.PINCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[userID] = cred
	return nil
}

func (s *memStore) GetTOTP(_ context.Context, userID string) (*lockgate.TOTPCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totps[userID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (s *memStore) PutTOTP(_ context.Context, userID string, cred lockgate.TOTPCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totps[userID] = cred
	return nil
}

func (s *memStore) DeleteTOTP(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.totps, userID)
	return nil
}

func (s *memStore) ListPasskeys(_ context.Context, userID string) ([]lockgate.PasskeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]lockgate.PasskeyCredential(nil), s.passkeys[userID]...), nil
}

func (s *memStore) AddPasskey(_ context.Context, userID string, cred lockgate.PasskeyCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passkeys[userID] = append(s.passkeys[userID], cred)
	return nil
}

func (s *memStore) UpdatePasskeySignCount(_ context.Context, userID string, credentialID []byte, prevCount, newCount uint32, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := s.passkeys[userID]
	for i := range creds {
		if bytes.Equal(creds[i].CredentialID, credentialID) {
			if creds[i].SignCount != prevCount {
				return false, nil
			}
			creds[i].SignCount = newCount
			creds[i].LastUsedAt = usedAt
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetSeedPhrase(_ context.Context, userID string) (*lockgate.SeedPhraseCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.seeds[userID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (s *memStore) PutSeedPhrase(_ context.Context, userID string, cred lockgate.SeedPhraseCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds[userID] = cred
	return nil
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string) error { return nil }

type guardHarness struct {
	engine *lockgate.Engine
	mr     *miniredis.Miniredis
}

func newGuardHarness(t *testing.T) *guardHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := lockgate.DefaultConfig()
	cfg.Identity.Secret = []byte("test-identity-secret-0123456789")
	cfg.TOTP.SecretKey = bytes.Repeat([]byte{0x42}, 32)
	cfg.Passkey.RPID = "localhost"
	cfg.Passkey.RPDisplayName = "test"
	cfg.Passkey.RPOrigins = []string{"http://localhost"}
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("test-signing-secret")

	engine, err := lockgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(newMemStore()).
		WithCodeSender(noopSender{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return &guardHarness{engine: engine, mr: mr}
}

func (h *guardHarness) registeredToken(t *testing.T) (token, userID string) {
	t.Helper()

	result, err := h.engine.Register(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return result.Token, result.UserID
}

func serveGuarded(h *guardHarness, inner http.Handler, authorization string) *httptest.ResponseRecorder {
	handler := Guard(h.engine)(inner)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRejectsMissingOrMalformedHeader(t *testing.T) {
	h := newGuardHarness(t)

	for _, header := range []string{"", "Bearer ", "Token abc", "bearer lowercase"} {
		rec := serveGuarded(h, okHandler(), header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status %d, want 401", header, rec.Code)
		}
	}
}

func TestGuardRejectsInvalidToken(t *testing.T) {
	h := newGuardHarness(t)

	rec := serveGuarded(h, okHandler(), "Bearer not-a-real-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestGuardStoresPrincipal(t *testing.T) {
	h := newGuardHarness(t)
	token, userID := h.registeredToken(t)

	var seen lockgate.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("principal missing from context")
		}
		seen = p
		w.WriteHeader(http.StatusOK)
	})

	rec := serveGuarded(h, inner, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if seen.UserID != userID {
		t.Fatalf("principal user %q, want %q", seen.UserID, userID)
	}
}

func TestGuardPrincipalVisibleThroughRootHelpers(t *testing.T) {
	h := newGuardHarness(t)
	token, userID := h.registeredToken(t)

	var fromRoot lockgate.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := lockgate.PrincipalFromContext(r.Context())
		if !ok {
			t.Error("principal missing via lockgate.PrincipalFromContext")
		}
		fromRoot = p
		w.WriteHeader(http.StatusOK)
	})

	rec := serveGuarded(h, inner, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if fromRoot.UserID != userID {
		t.Fatalf("principal user %q, want %q", fromRoot.UserID, userID)
	}
}

func TestPrincipalFromContextWithoutGuard(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("principal reported on an empty context")
	}
}

func TestRequireUnlockedPassesFreshSession(t *testing.T) {
	h := newGuardHarness(t)
	token, _ := h.registeredToken(t)

	handler := Guard(h.engine)(RequireUnlocked(h.engine)(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}

func TestRequireUnlockedRefusesIdleSession(t *testing.T) {
	h := newGuardHarness(t)
	token, userID := h.registeredToken(t)

	backdate := time.Now().UTC().Add(-10 * time.Minute).Unix()
	h.mr.Set("lg:act:"+userID, strconv.FormatInt(backdate, 10))

	handler := Guard(h.engine)(RequireUnlocked(h.engine)(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("status %d, want 423", rec.Code)
	}

	var body struct {
		Error            string   `json:"error"`
		LockLevel        string   `json:"lockLevel"`
		AvailableMethods []string `json:"availableMethods"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "session_locked" || body.LockLevel != "pin" {
		t.Fatalf("unexpected body: %+v", body)
	}
	found := false
	for _, m := range body.AvailableMethods {
		if m == "pin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("pin missing from available methods: %v", body.AvailableMethods)
	}
}

package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hsManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TTL:           ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-signing-secret"),
		Issuer:        "lockgate-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func edManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	m, err := NewManager(Config{
		TTL:           ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "lockgate-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"negative leeway", Config{TTL: time.Hour, Leeway: -time.Second, SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"excessive leeway", Config{TTL: time.Hour, Leeway: 3 * time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"hs256 without key", Config{TTL: time.Hour, SigningMethod: MethodHS256}},
		{"ed25519 bad private key", Config{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: []byte("short")}},
		{"unknown method", Config{TTL: time.Hour, SigningMethod: "rs256", PrivateKey: []byte("k")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCreateParseRoundTripHS256(t *testing.T) {
	m := hsManager(t, time.Hour)

	token, err := m.CreateSession("u1", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	claims, err := m.ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UID != "u1" || claims.Role != "user" || claims.SID != "sid-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCreateParseRoundTripEd25519(t *testing.T) {
	m := edManager(t, time.Hour)

	token, err := m.CreateSession("u2", "admin", "sid-2")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	claims, err := m.ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UID != "u2" || claims.Role != "admin" || claims.SID != "sid-2" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsCrossAlgorithmToken(t *testing.T) {
	hs := hsManager(t, time.Hour)
	ed := edManager(t, time.Hour)

	token, err := hs.CreateSession("u1", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := ed.ParseSession(token); err == nil {
		t.Fatal("ed25519 manager accepted an hs256 token")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	a := edManager(t, time.Hour)
	b := edManager(t, time.Hour)

	token, err := a.CreateSession("u1", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := b.ParseSession(token); err == nil {
		t.Fatal("token verified under an unrelated key pair")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := hsManager(t, time.Millisecond)

	token, err := m.CreateSession("u1", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsMissingPrincipalClaims(t *testing.T) {
	m := hsManager(t, time.Hour)

	token, err := m.CreateSession("", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("token without uid accepted")
	}

	token, err = m.CreateSession("u1", "user", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("token without sid accepted")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	other, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-signing-secret"),
		Issuer:        "someone-else",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := other.CreateSession("u1", "user", "sid-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	m := hsManager(t, time.Hour)
	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("token with wrong issuer accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := hsManager(t, time.Hour)

	for _, bad := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := m.ParseSession(bad); err == nil {
			t.Fatalf("garbage token %q accepted", bad)
		}
	}
}

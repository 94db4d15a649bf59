package lockgate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tyler-smith/go-bip39"
)

func TestGenerateSeedPhraseProducesValidMnemonic(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	result, err := h.engine.GenerateSeedPhrase(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	if len(result.Words) != 24 {
		t.Fatalf("expected 24 words, got %d", len(result.Words))
	}
	if !bip39.IsMnemonicValid(strings.Join(result.Words, " ")) {
		t.Fatal("generated phrase fails BIP39 checksum")
	}

	cred := h.store.seedPhrases["u1"]
	if cred.PhraseHash == "" || cred.EncryptedUserKey == "" {
		t.Fatal("expected stored hash and wrapped key")
	}
	phrase := strings.Join(result.Words, " ")
	if strings.Contains(cred.PhraseHash, phrase) || strings.Contains(cred.EncryptedUserKey, phrase) {
		t.Fatal("stored record leaks the phrase")
	}
}

func TestGenerateSeedPhraseRefusesSecondCall(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u1"); err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u1"); !errors.Is(err, ErrSeedPhraseExists) {
		t.Fatalf("expected ErrSeedPhraseExists, got %v", err)
	}
}

func TestRecoverWithSeedPhraseRoundTrip(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	generated, err := h.engine.GenerateSeedPhrase(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	phrase := strings.Join(generated.Words, " ")

	recovered, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", phrase)
	if err != nil {
		t.Fatalf("RecoverWithSeedPhrase failed: %v", err)
	}
	if recovered.Principal.UserID != "u1" {
		t.Fatalf("expected user u1, got %s", recovered.Principal.UserID)
	}
	if len(recovered.UserKey) == 0 {
		t.Fatal("expected unwrapped user key")
	}
	if recovered.Token == "" {
		t.Fatal("expected a session token")
	}

	// The same phrase recovers the exact same key bytes.
	again, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", phrase)
	if err != nil {
		t.Fatalf("second recovery failed: %v", err)
	}
	if !bytes.Equal(recovered.UserKey, again.UserKey) {
		t.Fatal("recovered keys differ between recoveries")
	}
}

func TestRecoverWithSeedPhraseNormalizesInput(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	generated, err := h.engine.GenerateSeedPhrase(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}

	messy := "  " + strings.ToUpper(strings.Join(generated.Words, "   ")) + "\n"
	if _, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", messy); err != nil {
		t.Fatalf("normalized recovery failed: %v", err)
	}
}

func TestRecoverWithSeedPhraseChecksumRejectedEarly(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	bad := strings.TrimSpace(strings.Repeat("abandon ", 24))
	_, err := h.engine.RecoverWithSeedPhrase(context.Background(), "alice@example.com", bad)
	if !errors.Is(err, ErrSeedPhraseChecksum) {
		t.Fatalf("expected ErrSeedPhraseChecksum, got %v", err)
	}
}

func TestRecoverWithSeedPhraseWrongPhrase(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u1"); err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}

	// A checksum-valid phrase that is not the account's phrase.
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		t.Fatalf("NewEntropy failed: %v", err)
	}
	other, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatalf("NewMnemonic failed: %v", err)
	}

	if _, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", other); !errors.Is(err, ErrSeedPhraseInvalid) {
		t.Fatalf("expected ErrSeedPhraseInvalid, got %v", err)
	}
}

func TestRecoverWithSeedPhraseBoundToAccount(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")
	h.seedAccount(t, "u2", "bob@example.com")

	ctx := context.Background()
	generated, err := h.engine.GenerateSeedPhrase(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u2"); err != nil {
		t.Fatalf("GenerateSeedPhrase u2 failed: %v", err)
	}

	phrase := strings.Join(generated.Words, " ")
	if _, err := h.engine.RecoverWithSeedPhrase(ctx, "bob@example.com", phrase); !errors.Is(err, ErrSeedPhraseInvalid) {
		t.Fatalf("expected ErrSeedPhraseInvalid for wrong account, got %v", err)
	}
}

func TestRecoverWithSeedPhraseNotConfigured(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	entropy, _ := bip39.NewEntropy(256)
	phrase, _ := bip39.NewMnemonic(entropy)

	_, err := h.engine.RecoverWithSeedPhrase(context.Background(), "alice@example.com", phrase)
	if !errors.Is(err, ErrSeedPhraseNotConfigured) {
		t.Fatalf("expected ErrSeedPhraseNotConfigured, got %v", err)
	}
}

func TestRegenerateSeedPhraseRequiresFactorProof(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	ctx := context.Background()
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u1"); err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}

	// No enrolled factor at all: refused.
	if _, err := h.engine.RegenerateSeedPhrase(ctx, "u1", "123456"); !errors.Is(err, ErrSeedPhraseProofRequired) {
		t.Fatalf("expected ErrSeedPhraseProofRequired, got %v", err)
	}
}

func TestRegenerateSeedPhraseWithPINProof(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")
	seedActiveSession(t, h, "u1")

	ctx := context.Background()
	first, err := h.engine.GenerateSeedPhrase(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	if err := h.engine.SetupPIN(ctx, "u1", "482913"); err != nil {
		t.Fatalf("SetupPIN failed: %v", err)
	}

	if _, err := h.engine.RegenerateSeedPhrase(ctx, "u1", "000000"); !errors.Is(err, ErrSeedPhraseProofRequired) {
		t.Fatalf("expected ErrSeedPhraseProofRequired for wrong PIN, got %v", err)
	}

	second, err := h.engine.RegenerateSeedPhrase(ctx, "u1", "482913")
	if err != nil {
		t.Fatalf("RegenerateSeedPhrase failed: %v", err)
	}
	if strings.Join(first.Words, " ") == strings.Join(second.Words, " ") {
		t.Fatal("regeneration returned the same phrase")
	}

	// The old phrase stops verifying, the new one recovers.
	oldPhrase := strings.Join(first.Words, " ")
	if _, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", oldPhrase); !errors.Is(err, ErrSeedPhraseInvalid) {
		t.Fatalf("old phrase still recovers: %v", err)
	}
	if _, err := h.engine.RecoverWithSeedPhrase(ctx, "alice@example.com", strings.Join(second.Words, " ")); err != nil {
		t.Fatalf("new phrase does not recover: %v", err)
	}
}

func TestRegenerateSeedPhraseWithTOTPProof(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")
	seedActiveSession(t, h, "u1")

	ctx := context.Background()
	if _, err := h.engine.GenerateSeedPhrase(ctx, "u1"); err != nil {
		t.Fatalf("GenerateSeedPhrase failed: %v", err)
	}
	secret := enableTOTP(t, h, "u1")

	if _, err := h.engine.RegenerateSeedPhrase(ctx, "u1", "000000"); !errors.Is(err, ErrSeedPhraseProofRequired) {
		t.Fatalf("expected ErrSeedPhraseProofRequired for wrong code, got %v", err)
	}
	if _, err := h.engine.RegenerateSeedPhrase(ctx, "u1", totpCodeAt(t, secret, time.Now(), 0)); err != nil {
		t.Fatalf("RegenerateSeedPhrase with TOTP proof failed: %v", err)
	}
}

func TestRegenerateSeedPhraseWithoutExistingPhrase(t *testing.T) {
	h := newTestEngine(t)
	h.seedAccount(t, "u1", "alice@example.com")

	_, err := h.engine.RegenerateSeedPhrase(context.Background(), "u1", "482913")
	if !errors.Is(err, ErrSeedPhraseNotConfigured) {
		t.Fatalf("expected ErrSeedPhraseNotConfigured, got %v", err)
	}
}

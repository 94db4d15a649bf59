package lockgate

import (
	"strings"
	"testing"
	"time"
)

func TestTOTPVerifyRFCVectorsSHA1(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      0,
	})
	secret := []byte("12345678901234567890")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA1 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA256(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA256",
		Skew:      0,
	})
	secret := []byte("12345678901234567890123456789012")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "46119246"},
		{1111111109, "68084774"},
		{1111111111, "67062674"},
		{1234567890, "91819424"},
		{2000000000, "90698825"},
		{20000000000, "77737706"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA256 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA512(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA512",
		Skew:      0,
	})
	secret := []byte("1234567890123456789012345678901234567890123456789012345678901234")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "90693936"},
		{1111111109, "25091201"},
		{1111111111, "99943326"},
		{1234567890, "93441116"},
		{2000000000, "38618901"},
		{20000000000, "47863826"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA512 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPDriftWindowAcceptsAdjacentStep(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret := []byte("12345678901234567890")
	now := time.Unix(1234567890, 0)

	for _, offset := range []int64{-1, 0, 1} {
		code, err := hotpValue(secret, now.Unix()/30+offset, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpValue failed: %v", err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil || !ok {
			t.Fatalf("offset %d: expected accept, ok=%v err=%v", offset, ok, err)
		}
	}
}

func TestTOTPDriftWindowRejectsDistantStep(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret := []byte("12345678901234567890")
	now := time.Unix(1234567890, 0)

	for _, offset := range []int64{-2, 2, 5} {
		code, err := hotpValue(secret, now.Unix()/30+offset, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpValue failed: %v", err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("offset %d: expected reject", offset)
		}
	}
}

func TestTOTPWrongDigitsRejected(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret := []byte("12345678901234567890")

	for _, code := range []string{"", "12345", "12345678", "12a456"} {
		ok, err := m.VerifyCode(secret, code, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("code %q: expected reject", code)
		}
	}
}

func TestTOTPProvisionURIShape(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "lockgate",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})

	_, secretBase32, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	uri := m.ProvisionURI(secretBase32, "user-1")
	for _, want := range []string{
		"otpauth://totp/",
		"issuer=lockgate",
		"digits=6",
		"period=30",
		"algorithm=SHA1",
		"secret=" + secretBase32,
	} {
		if !strings.Contains(uri, want) {
			t.Fatalf("URI %q missing %q", uri, want)
		}
	}
}

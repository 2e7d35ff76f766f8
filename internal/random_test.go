package internal

import (
	"encoding/base64"
	"strconv"
	"testing"
)

func TestNewOTPRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		otp, err := NewOTP()
		if err != nil {
			t.Fatalf("NewOTP failed: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 digits, got %q", otp)
		}
		n, err := strconv.Atoi(otp)
		if err != nil {
			t.Fatalf("otp is not numeric: %q", otp)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("otp out of range: %d", n)
		}
	}
}

func TestNewResetTokenEntropy(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		tok, err := NewResetToken()
		if err != nil {
			t.Fatalf("NewResetToken failed: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not base64url: %v", err)
		}
		if len(raw) != 32 {
			t.Fatalf("expected 32 raw bytes, got %d", len(raw))
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate reset token")
		}
		seen[tok] = struct{}{}
	}
}

func TestHashToken(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashToken("abc"); got != want {
		t.Fatalf("unexpected digest %s", got)
	}
	if HashToken("a") == HashToken("b") {
		t.Fatal("distinct inputs must hash differently")
	}
}

func TestRandomIndex(t *testing.T) {
	if _, err := RandomIndex(0); err == nil {
		t.Fatal("expected error for empty range")
	}
	for i := 0; i < 100; i++ {
		v, err := RandomIndex(3)
		if err != nil {
			t.Fatalf("RandomIndex failed: %v", err)
		}
		if v < 0 || v >= 3 {
			t.Fatalf("index out of range: %d", v)
		}
	}
}

func FuzzHashToken(f *testing.F) {
	f.Add("")
	f.Add("123456")
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.sig")

	f.Fuzz(func(t *testing.T, input string) {
		h := HashToken(input)
		if len(h) != 64 {
			t.Fatalf("unexpected digest length %d", len(h))
		}
		if h != HashToken(input) {
			t.Fatal("hash must be deterministic")
		}
	})
}

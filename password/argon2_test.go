package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	hash, err := hasher.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("correct-horse", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong-horse", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	if hasher.MinLength() != 8 {
		t.Fatalf("expected default minimum of 8, got %d", hasher.MinLength())
	}
	if _, err := hasher.Hash("1234567"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := hasher.Hash("12345678"); err != nil {
		t.Fatalf("expected 8 character password to hash, got %v", err)
	}
	// Four characters, eight bytes.
	if err := hasher.CheckPolicy("éééé"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort for short multi-byte password, got %v", err)
	}
	if err := hasher.CheckPolicy("éééééééé"); err != nil {
		t.Fatalf("expected 8 character multi-byte password to pass, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	cases := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2hvcnQ$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := hasher.Verify("whatever1", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	strong, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	if needs, err := strong.NeedsRehash(hash); err != nil || !needs {
		t.Fatalf("expected rehash for weaker hash, needs=%v err=%v", needs, err)
	}
	if needs, err := weak.NeedsRehash(hash); err != nil || needs {
		t.Fatalf("expected no rehash for same parameters, needs=%v err=%v", needs, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected memory below floor to be rejected")
	}
	cfg = fastConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}

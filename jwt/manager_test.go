package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func testConfig(now func() time.Time) Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		Issuer:        "stayease",
		Now:           now,
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig(nil))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, exp, err := m.CreateAccess("u1", "host", "a@b.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if time.Until(exp) <= 14*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "host" || claims.Email != "a@b.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokensAreUniqueWithinSameSecond(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	m, err := NewManager(testConfig(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	a, _, err := m.CreateRefresh("u1")
	if err != nil {
		t.Fatalf("CreateRefresh failed: %v", err)
	}
	b, _, err := m.CreateRefresh("u1")
	if err != nil {
		t.Fatalf("CreateRefresh failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct refresh tokens")
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m, err := NewManager(testConfig(nil))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	access, _, _ := m.CreateAccess("u1", "guest", "a@b.com")
	refresh, _, _ := m.CreateRefresh("u1")

	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	m, err := NewManager(testConfig(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, _, err := m.CreateAccess("u1", "guest", "a@b.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m1, _ := NewManager(testConfig(nil))
	cfg := testConfig(nil)
	cfg.AccessSecret = []byte("another-access-secret-xyz")
	m2, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, _, _ := m1.CreateAccess("u1", "guest", "a@b.com")
	if _, err := m2.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected signature mismatch rejected, got %v", err)
	}
}

func TestTamperedAndGarbageTokens(t *testing.T) {
	m, _ := NewManager(testConfig(nil))
	token, _, _ := m.CreateAccess("u1", "guest", "a@b.com")

	for _, tok := range []string{"", "garbage", "a.b.c", token + "x", token[:len(token)-2]} {
		if _, err := m.ParseAccess(tok); err == nil {
			t.Fatalf("expected %q rejected", tok)
		}
	}
}

func TestNewManagerRejectsWeakSecrets(t *testing.T) {
	cfg := testConfig(nil)
	cfg.AccessSecret = []byte("short")
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected short secret rejected")
	}

	cfg = testConfig(nil)
	cfg.RefreshSecret = cfg.AccessSecret
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected identical secrets rejected")
	}

	cfg = testConfig(nil)
	cfg.AccessTTL = 0
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected zero TTL rejected")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg := testConfig(nil)
	cfg.SigningMethod = MethodEd25519
	cfg.PrivateKey = priv
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	refresh, _, err := m.CreateRefresh("u9")
	if err != nil {
		t.Fatalf("CreateRefresh failed: %v", err)
	}
	claims, err := m.ParseRefresh(refresh)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	if claims.Subject != "u9" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if _, err := m.ParseAccess(refresh); err == nil {
		t.Fatal("expected refresh token rejected as access")
	}
}

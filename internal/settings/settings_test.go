package settings

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range env {
		for _, name := range names {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Production || s.Port != 5000 || s.Addr() != ":5000" {
		t.Fatalf("unexpected %+v", s)
	}
	if s.Mongo.URI != "mongodb://localhost:27017" || s.Mongo.Database != "stayease" {
		t.Fatalf("mongo = %+v", s.Mongo)
	}
	if s.JWT.AccessTTL != 15*time.Minute || s.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("jwt = %+v", s.JWT)
	}
	if len(s.ClientOrigins) != 1 || s.ClientOrigins[0] != "http://localhost:5173" {
		t.Fatalf("origins = %v", s.ClientOrigins)
	}
	if _, ok := s.Mailer(); ok {
		t.Fatal("mailer should be off without SMTP settings")
	}

	cfg := s.Engine()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default engine config invalid: %v", err)
	}
	if string(cfg.JWT.AccessSecret) != stayAuth.DefaultAccessSecret {
		t.Fatal("unset secret should keep the development default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "Production")
	t.Setenv("PORT", "8081")
	t.Setenv("ACCESS_TOKEN_SECRET", "prod-access-secret-0123456789")
	t.Setenv("REFRESH_TOKEN_SECRET", "prod-refresh-secret-0123456789")
	t.Setenv("ACCESS_TOKEN_EXPIRES", "10m")
	t.Setenv("REFRESH_TOKEN_EXPIRES", "14d")
	t.Setenv("CLIENT_ORIGINS", "https://a.example, https://b.example/")
	t.Setenv("COOKIE_SAME_SITE", "none")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "mailer@example.com")
	t.Setenv("SMTP_PASS", "pw")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Production || s.Port != 8081 {
		t.Fatalf("unexpected %+v", s)
	}
	if len(s.ClientOrigins) != 2 || s.ClientOrigins[1] != "https://b.example/" {
		t.Fatalf("origins = %v", s.ClientOrigins)
	}
	if len(s.KafkaBrokers) != 2 {
		t.Fatalf("brokers = %v", s.KafkaBrokers)
	}

	cfg := s.Engine()
	if !cfg.Security.ProductionMode || cfg.JWT.AccessTTL != 10*time.Minute || cfg.JWT.RefreshTTL != 14*24*time.Hour {
		t.Fatalf("engine config = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mc, ok := s.Mailer()
	if !ok || mc.Port != 587 || mc.Host != "smtp.example.com" {
		t.Fatalf("mailer = %+v %v", mc, ok)
	}
	if s.HTTP().CookieSameSite != http.SameSiteNoneMode {
		t.Fatal("same-site not mapped")
	}
}

func TestProductionWithoutSecretsFailsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "production")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := s.Engine()
	if err := cfg.Validate(); err == nil {
		t.Fatal("production must refuse development secrets")
	}
}

func TestLoadSingleClientOrigin(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ORIGIN", "https://stayease.app")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.ClientOrigins) != 1 || s.ClientOrigins[0] != "https://stayease.app" {
		t.Fatalf("origins = %v", s.ClientOrigins)
	}
}

func TestYAMLFileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "stayease.yaml")
	yaml := "port: 7000\nmongo:\n  database: fromfile\nsmtp:\n  port: 465\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7001")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 7001 || s.Mongo.Database != "fromfile" || s.SMTP.Port != 465 {
		t.Fatalf("unexpected %+v", s)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	if err := os.WriteFile(".env", []byte("MONGODB_DB=fromdotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MONGODB_DB") })

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Mongo.Database != "fromdotenv" {
		t.Fatalf("database = %q", s.Mongo.Database)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, kv := range map[string][2]string{
		"expiry": {"ACCESS_TOKEN_EXPIRES", "soon"},
		"port":   {"PORT", "70000"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"2w", 14 * 24 * time.Hour, true},
		{"1h30m", 90 * time.Minute, true},
		{"900", 15 * time.Minute, true},
		{" 12H ", 12 * time.Hour, true},
		{"", 0, false},
		{"0", 0, false},
		{"-5m", 0, false},
		{"xd", 0, false},
		{"forever", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseExpiry(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("ParseExpiry(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestPendingBackend(t *testing.T) {
	clearEnv(t)
	s, err := Load("")
	if err != nil || s.PendingBackend != "mongo" {
		t.Fatalf("default backend: %+v %v", s, err)
	}

	t.Setenv("PENDING_STORE", "redis")
	if _, err := Load(""); err == nil {
		t.Fatal("redis backend without REDIS_ADDR should fail")
	}

	t.Setenv("REDIS_ADDR", "localhost:6379")
	s, err = Load("")
	if err != nil || s.PendingBackend != "redis" {
		t.Fatalf("redis backend: %+v %v", s, err)
	}

	t.Setenv("PENDING_STORE", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

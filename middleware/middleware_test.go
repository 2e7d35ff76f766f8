package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/memstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(t *testing.T) *stayAuth.Engine {
	t.Helper()

	cfg := stayAuth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := stayAuth.New().
		WithConfig(cfg).
		WithUserStore(memstore.NewUsers()).
		WithPendingStore(memstore.NewPendingSignups()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func register(t *testing.T, engine *stayAuth.Engine, role string) stayAuth.SessionResult {
	t.Helper()
	session, err := engine.Register(context.Background(), stayAuth.RegisterRequest{
		Name:     "Guest",
		Email:    role + "@example.com",
		Password: "correct horse",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return session
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(res.UserID))
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardRejectsMissingAndBadTokens(t *testing.T) {
	engine := newTestEngine(t)
	h := RequireAuth(engine)(okHandler())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Authentication required.") {
		t.Fatalf("missing token: %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = serve(h, req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Invalid or expired token.") {
		t.Fatalf("bad token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGuardInjectsAuthResult(t *testing.T) {
	engine := newTestEngine(t)
	session := register(t, engine, "guest")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := serve(RequireAuth(engine)(okHandler()), req)

	if rec.Code != http.StatusOK || rec.Body.String() != session.User.ID {
		t.Fatalf("expected user id, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestStrictRejectsAfterLogout(t *testing.T) {
	engine := newTestEngine(t)
	session := register(t, engine, "guest")
	engine.Logout(context.Background(), session.RefreshToken)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		return req
	}

	if rec := serve(RequireJWTOnly(engine)(okHandler()), newReq()); rec.Code != http.StatusOK {
		t.Fatalf("jwt-only should accept until expiry, got %d", rec.Code)
	}
	if rec := serve(RequireStrict(engine)(okHandler()), newReq()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("strict should reject after logout, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(stayAuth.RoleHost, stayAuth.RoleAdmin)(okHandler())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithAuthResult(req.Context(), &stayAuth.AuthResult{UserID: "u1", Role: stayAuth.RoleGuest}))
	rec = serve(h, req)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "Not authorized.") {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithAuthResult(req.Context(), &stayAuth.AuthResult{UserID: "u2", Role: stayAuth.RoleHost}))
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("host should pass, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:5173/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := serve(h, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials header missing")
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	if rec := serve(h, req); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign preflight should be 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	if rec := serve(h, req); rec.Code != http.StatusNoContent {
		t.Fatalf("preflight should be 204, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req, false); got != "10.0.0.1" {
		t.Fatalf("untrusted ip = %q", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("trusted ip = %q", got)
	}
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(60, 2, false, zap.NewNop())
	t.Cleanup(l.Close)
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/captcha", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		codes = append(codes, serve(h, req).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/captcha", nil)
	req.RemoteAddr = "198.51.100.8:1234"
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("other ip should pass, got %d", rec.Code)
	}
}

func TestIPRateLimiterSweepsIdleVisitors(t *testing.T) {
	l := NewIPRateLimiter(60, 1, false, nil)
	t.Cleanup(l.Close)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(visitorIdle + time.Second)
	l.Allow("b")
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.visitors["a"]; ok {
		t.Fatal("idle visitor not swept")
	}
	if _, ok := l.visitors["b"]; !ok {
		t.Fatal("active visitor swept")
	}
}

func TestRecoverAndRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), RequestLogger(logger), Recover(logger))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("panic not logged")
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 || entries[0].Level != zap.ErrorLevel {
		t.Fatalf("expected one error-level request log, got %v", entries)
	}
}

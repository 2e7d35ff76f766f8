package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/internal/authtest"
)

type harness struct {
	t   *testing.T
	env *authtest.Env
	api *API
}

func newHarness(t *testing.T, cfg Config, opts ...authtest.Option) *harness {
	t.Helper()
	env := authtest.New(t, opts...)
	api := New(env.Engine, cfg)
	t.Cleanup(api.Close)
	return &harness{t: t, env: env, api: api}
}

type call struct {
	method string
	path   string
	body   any
	bearer string
	cookie *http.Cookie
	raw    string
}

func (h *harness) do(c call) *httptest.ResponseRecorder {
	h.t.Helper()

	var body bytes.Buffer
	switch {
	case c.raw != "":
		body.WriteString(c.raw)
	case c.body != nil:
		if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) map[string]any {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if message != "" && body["message"] != message {
		t.Fatalf("message = %v, want %q", body["message"], message)
	}
	return body
}

func refreshCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", refreshCookie)
	return nil
}

func (h *harness) registerUser(email, password string) (*http.Cookie, string) {
	h.t.Helper()
	rec := h.do(call{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"name": "Asha", "email": email, "password": password,
	}})
	body := expect(h.t, rec, http.StatusCreated, "Registration successful")
	return refreshCookieOf(h.t, rec), body["accessToken"].(string)
}

func (h *harness) loginBody(email, password string) map[string]string {
	h.t.Helper()
	req := h.env.LoginRequest(h.t, email, password)
	return map[string]string{
		"email":       req.Email,
		"password":    req.Password,
		"captchaId":   req.CaptchaID,
		"captchaText": req.CaptchaText,
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, Config{ServiceName: "stayease-test"})
	body := expect(t, h.do(call{method: http.MethodGet, path: "/api/health"}), http.StatusOK, "")
	if body["ok"] != true || body["service"] != "stayease-test" || body["time"] == "" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestCaptchaIssue(t *testing.T) {
	h := newHarness(t, Config{})
	body := expect(t, h.do(call{method: http.MethodGet, path: "/api/captcha?purpose=booking"}), http.StatusOK, "")

	id, _ := body["captchaId"].(string)
	svg, _ := body["captchaSvg"].(string)
	if id == "" || !strings.HasPrefix(svg, "<svg") || body["expiresInSeconds"] != float64(300) {
		t.Fatalf("unexpected captcha body %v", body)
	}
	ok, err := h.env.Engine.VerifyCaptcha(t.Context(), id, h.env.Captcha.Answer(id), "booking")
	if err != nil || !ok {
		t.Fatalf("issued captcha should verify for its purpose: %v %v", ok, err)
	}
}

func TestCaptchaRateLimitedPerIP(t *testing.T) {
	h := newHarness(t, Config{CaptchaPerMinute: 1, CaptchaBurst: 1})
	expect(t, h.do(call{method: http.MethodGet, path: "/api/captcha"}), http.StatusOK, "")
	expect(t, h.do(call{method: http.MethodGet, path: "/api/captcha"}), http.StatusTooManyRequests, "Too many requests. Try again later.")
}

func TestSignupOTPFlow(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/register/request-otp", body: map[string]any{
		"name": "Asha", "email": " Asha@Example.com ", "phone": "+91 98", "password": "longenough",
		"role": "host", "termsAccepted": true,
	}})
	body := expect(t, rec, http.StatusOK, "Email delivery unavailable. Using dev OTP preview.")
	otp, _ := body["otpPreview"].(string)
	if len(otp) != 6 {
		t.Fatalf("expected 6 digit preview, got %q", otp)
	}

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/register/verify-otp", body: map[string]string{
		"email": "asha@example.com", "otp": "000000",
	}})
	expect(t, rec, http.StatusBadRequest, "Invalid OTP.")

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/register/verify-otp", body: map[string]string{
		"email": "asha@example.com", "otp": otp,
	}})
	body = expect(t, rec, http.StatusCreated, "Registration successful")
	user := body["user"].(map[string]any)
	if user["email"] != "asha@example.com" || user["role"] != "host" || user["phone"] != "+91 98" {
		t.Fatalf("unexpected user %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("public user leaks password hash")
	}

	c := refreshCookieOf(t, rec)
	if !c.HttpOnly || c.Path != "/api/auth" || c.SameSite != http.SameSiteLaxMode || c.Secure {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if c.MaxAge != 7*24*60*60 {
		t.Fatalf("cookie MaxAge = %d", c.MaxAge)
	}

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/register/verify-otp", body: map[string]string{
		"email": "asha@example.com", "otp": otp,
	}})
	expect(t, rec, http.StatusBadRequest, "No pending signup found.")
}

func TestSignupOTPValidation(t *testing.T) {
	h := newHarness(t, Config{})
	h.registerUser("taken@example.com", "longenough")

	cases := []struct {
		name    string
		body    map[string]any
		status  int
		message string
	}{
		{"missing fields", map[string]any{"email": "a@b.co"}, 400, "Name, email, phone, and password are required."},
		{"terms", map[string]any{"name": "A", "email": "a@b.co", "phone": "1", "password": "longenough"}, 400, "Please accept terms and conditions."},
		{"short password", map[string]any{"name": "A", "email": "a@b.co", "phone": "1", "password": "short", "termsAccepted": true}, 400, "Password must be at least 8 characters."},
		{"bad email", map[string]any{"name": "A", "email": "not-an-email", "phone": "1", "password": "longenough", "termsAccepted": true}, 400, "Enter a valid email."},
		{"duplicate", map[string]any{"name": "A", "email": "TAKEN@example.com", "phone": "1", "password": "longenough", "termsAccepted": true}, 409, "Email already registered."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(call{method: http.MethodPost, path: "/api/auth/register/request-otp", body: tc.body})
			expect(t, rec, tc.status, tc.message)
		})
	}

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/register/verify-otp", body: map[string]string{"email": "a@b.co"}})
	expect(t, rec, http.StatusBadRequest, "Email and OTP are required.")
}

func TestLoginResponses(t *testing.T) {
	h := newHarness(t, Config{})
	h.registerUser("guest@example.com", "longenough")

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "guest@example.com"}})
	expect(t, rec, http.StatusBadRequest, "Email and password are required.")

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": "guest@example.com", "password": "longenough",
	}})
	expect(t, rec, http.StatusBadRequest, "CAPTCHA is required.")

	bad := h.loginBody("guest@example.com", "longenough")
	bad["captchaText"] = "wrong!"
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/login", body: bad}), http.StatusBadRequest, "Invalid or expired CAPTCHA.")

	wrongPassword := h.do(call{method: http.MethodPost, path: "/api/auth/login", body: h.loginBody("guest@example.com", "wrongpassword")})
	unknown := h.do(call{method: http.MethodPost, path: "/api/auth/login", body: h.loginBody("nobody@example.com", "longenough")})
	expect(t, wrongPassword, http.StatusUnauthorized, "Invalid credentials.")
	expect(t, unknown, http.StatusUnauthorized, "Invalid credentials.")
	if wrongPassword.Body.String() != unknown.Body.String() {
		t.Fatal("unknown email and wrong password must be indistinguishable")
	}

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/login", body: h.loginBody("GUEST@example.com", "longenough")})
	body := expect(t, rec, http.StatusOK, "Login successful")
	if body["accessToken"] == "" {
		t.Fatal("missing access token")
	}
	refreshCookieOf(t, rec)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	h := newHarness(t, Config{})
	first, _ := h.registerUser("guest@example.com", "longenough")

	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/refresh"}), http.StatusUnauthorized, "Missing refresh token.")

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookie: first})
	body := expect(t, rec, http.StatusOK, "")
	if body["accessToken"] == "" || body["user"] == nil {
		t.Fatalf("unexpected refresh body %v", body)
	}
	second := refreshCookieOf(t, rec)
	if second.Value == first.Value {
		t.Fatal("refresh token not rotated")
	}

	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookie: first}), http.StatusUnauthorized, "Invalid refresh token.")

	garbage := &http.Cookie{Name: refreshCookie, Value: "garbage"}
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookie: garbage}), http.StatusUnauthorized, "Invalid refresh token.")
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	h := newHarness(t, Config{})
	cookie, _ := h.registerUser("guest@example.com", "longenough")

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	expect(t, rec, http.StatusOK, "Logged out.")
	if cleared := refreshCookieOf(t, rec); cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("cookie not cleared: %+v", cleared)
	}

	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookie: cookie}), http.StatusUnauthorized, "Invalid refresh token.")
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/logout"}), http.StatusOK, "Logged out.")
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t, Config{})
	h.registerUser("guest@example.com", "longenough")

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/forgot-password", body: map[string]string{"email": "nobody@example.com"}})
	body := expect(t, rec, http.StatusOK, msgResetRequested)
	if _, ok := body["resetToken"]; ok {
		t.Fatal("unknown email must not get a token")
	}

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/forgot-password", body: map[string]string{"email": "guest@example.com"}})
	body = expect(t, rec, http.StatusOK, msgResetRequested)
	token, _ := body["resetToken"].(string)
	if token == "" {
		t.Fatal("dev mode should disclose the reset token")
	}

	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/reset-password", body: map[string]string{"token": token}}),
		http.StatusBadRequest, "Token and new password are required.")
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/reset-password", body: map[string]string{"token": token, "newPassword": "short"}}),
		http.StatusBadRequest, "Password must be at least 8 characters.")
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/reset-password", body: map[string]string{"token": token, "newPassword": "brandnewpass"}}),
		http.StatusOK, "Password reset successful.")
	expect(t, h.do(call{method: http.MethodPost, path: "/api/auth/reset-password", body: map[string]string{"token": token, "newPassword": "anotherpass"}}),
		http.StatusBadRequest, "Invalid or expired reset token.")

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/login", body: h.loginBody("guest@example.com", "brandnewpass")})
	expect(t, rec, http.StatusOK, "Login successful")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, Config{})
	_, access := h.registerUser("guest@example.com", "longenough")
	path := "/api/auth/change-password"

	expect(t, h.do(call{method: http.MethodPost, path: path, body: map[string]string{}}), http.StatusUnauthorized, "Authentication required.")
	expect(t, h.do(call{method: http.MethodPost, path: path, bearer: "nope"}), http.StatusUnauthorized, "Invalid or expired token.")
	expect(t, h.do(call{method: http.MethodPost, path: path, bearer: access, body: map[string]string{"currentPassword": "longenough"}}),
		http.StatusBadRequest, "Current and new password are required.")
	expect(t, h.do(call{method: http.MethodPost, path: path, bearer: access, body: map[string]string{"currentPassword": "wrongwrong", "newPassword": "brandnewpass"}}),
		http.StatusUnauthorized, "Current password is incorrect.")
	expect(t, h.do(call{method: http.MethodPost, path: path, bearer: access, body: map[string]string{"currentPassword": "longenough", "newPassword": "brandnewpass"}}),
		http.StatusOK, "Password updated.")
}

func TestMeAndUpdateProfile(t *testing.T) {
	h := newHarness(t, Config{})
	_, access := h.registerUser("guest@example.com", "longenough")

	body := expect(t, h.do(call{method: http.MethodGet, path: "/api/auth/me", bearer: access}), http.StatusOK, "")
	if body["user"].(map[string]any)["email"] != "guest@example.com" {
		t.Fatalf("unexpected me body %v", body)
	}

	rec := h.do(call{method: http.MethodPut, path: "/api/auth/me", bearer: access, body: map[string]string{"name": "  New Name  ", "phone": " 555 "}})
	body = expect(t, rec, http.StatusOK, "Profile updated.")
	user := body["user"].(map[string]any)
	if user["name"] != "New Name" || user["phone"] != "555" {
		t.Fatalf("unexpected profile %v", user)
	}

	rec = h.do(call{method: http.MethodPut, path: "/api/auth/me", bearer: access, body: map[string]string{"name": ""}})
	body = expect(t, rec, http.StatusOK, "Profile updated.")
	user = body["user"].(map[string]any)
	if user["name"] != "New Name" || user["phone"] != "555" {
		t.Fatalf("empty name and absent phone must change nothing, got %v", user)
	}
}

func TestMalformedJSON(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(call{method: http.MethodPost, path: "/api/auth/login", raw: "{not json"})
	expect(t, rec, http.StatusBadRequest, "Invalid JSON body.")
}

func TestProductionModeHidesPreviewAndSecuresCookie(t *testing.T) {
	h := newHarness(t, Config{}, authtest.WithConfig(func(cfg *stayAuth.Config) {
		cfg.Security.ProductionMode = true
		cfg.JWT.AccessSecret = []byte("prod-access-secret-0123456789")
		cfg.JWT.RefreshSecret = []byte("prod-refresh-secret-0123456789")
	}))

	rec := h.do(call{method: http.MethodPost, path: "/api/auth/register/request-otp", body: map[string]any{
		"name": "A", "email": "a@example.com", "phone": "1", "password": "longenough", "termsAccepted": true,
	}})
	body := expect(t, rec, http.StatusOK, "Email delivery unavailable. Try again later.")
	if _, ok := body["otpPreview"]; ok {
		t.Fatal("production must not return otpPreview")
	}

	cookie, _ := h.registerUser("b@example.com", "longenough")
	if !cookie.Secure {
		t.Fatal("production cookie must be Secure")
	}

	rec = h.do(call{method: http.MethodPost, path: "/api/auth/forgot-password", body: map[string]string{"email": "b@example.com"}})
	body = expect(t, rec, http.StatusOK, msgResetRequested)
	if _, ok := body["resetToken"]; ok {
		t.Fatal("production must not return resetToken")
	}
}

func TestMailerDeliveryMessage(t *testing.T) {
	h := newHarness(t, Config{}, authtest.WithMailer())
	rec := h.do(call{method: http.MethodPost, path: "/api/auth/register/request-otp", body: map[string]any{
		"name": "A", "email": "a@example.com", "phone": "1", "password": "longenough", "termsAccepted": true,
	}})
	body := expect(t, rec, http.StatusOK, "OTP sent to your email.")
	if _, ok := body["otpPreview"]; ok {
		t.Fatal("delivered OTP must not be previewed")
	}
	if h.env.Mailer.LastOTP("a@example.com") == "" {
		t.Fatal("mailer did not receive the OTP")
	}
}

func TestSameSiteNoneForcesSecure(t *testing.T) {
	h := newHarness(t, Config{CookieSameSite: ParseSameSite("None"), BasePath: "/v1/"})
	rec := h.do(call{method: http.MethodPost, path: "/v1/auth/register", body: map[string]string{
		"name": "A", "email": "a@example.com", "password": "longenough",
	}})
	expect(t, rec, http.StatusCreated, "")
	c := refreshCookieOf(t, rec)
	if c.SameSite != http.SameSiteNoneMode || !c.Secure || c.Path != "/v1/auth" {
		t.Fatalf("unexpected cookie %+v", c)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness(t, Config{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "stayauth_login_success_total 0\n")
	})})
	rec := h.do(call{method: http.MethodGet, path: "/metrics"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "stayauth_login_success_total") {
		t.Fatalf("metrics route: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&stayAuth.ValidationError{Message: "x"}, 400},
		{fmt.Errorf("wrapped: %w", stayAuth.ErrOTPExpired), 400},
		{stayAuth.ErrInvalidCredentials, 401},
		{stayAuth.ErrPermissionDenied, 403},
		{stayAuth.ErrUserNotFound, 404},
		{stayAuth.ErrAccountExists, 409},
		{stayAuth.ErrRateLimited, 429},
		{errors.New("mongo down"), 500},
	}
	for _, tc := range cases {
		if got, _, _ := statusFor(tc.err); got != tc.status {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestParseSameSite(t *testing.T) {
	for in, want := range map[string]http.SameSite{
		"strict": http.SameSiteStrictMode,
		"NONE":   http.SameSiteNoneMode,
		"lax":    http.SameSiteLaxMode,
		"":       http.SameSiteLaxMode,
		"bogus":  http.SameSiteLaxMode,
	} {
		if got := ParseSameSite(in); got != want {
			t.Errorf("ParseSameSite(%q) = %v, want %v", in, got, want)
		}
	}
}

package stayAuth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/internal/authtest"
	"github.com/MrEthical07/stayAuth/memstore"
)

func signupRequest(email string) stayAuth.SignupOTPRequest {
	return stayAuth.SignupOTPRequest{
		Name:          "Asha",
		Email:         email,
		Phone:         "+91 555",
		Password:      password,
		Role:          "host",
		TermsAccepted: true,
	}
}

func TestSignupOTPHappyPath(t *testing.T) {
	env := authtest.New(t)
	ctx := context.Background()

	res, err := env.Engine.RequestSignupOTP(ctx, signupRequest("Asha@Example.com"))
	if err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	if res.Delivered || len(res.Preview) != 6 {
		t.Fatalf("expected dev preview without mailer, got %+v", res)
	}
	if res.Preview < "100000" || res.Preview > "999999" {
		t.Fatalf("otp out of range: %q", res.Preview)
	}

	session, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: res.Preview})
	if err != nil {
		t.Fatalf("VerifySignupOTP: %v", err)
	}
	if session.User.Role != stayAuth.RoleHost || session.User.Phone != "+91 555" {
		t.Fatalf("unexpected user %+v", session.User)
	}
	if env.Pending.Len() != 0 {
		t.Fatal("pending signup should be consumed")
	}

	if _, err := env.Login(t, "asha@example.com", password); err != nil {
		t.Fatalf("login with signup password: %v", err)
	}
}

func TestSignupOTPMailed(t *testing.T) {
	env := authtest.New(t, authtest.WithMailer())
	res, err := env.Engine.RequestSignupOTP(context.Background(), signupRequest("asha@example.com"))
	if err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	if !res.Delivered || res.Preview != "" {
		t.Fatalf("mailed OTP must not be previewed: %+v", res)
	}
	if len(env.Mailer.LastOTP("asha@example.com")) != 6 {
		t.Fatal("mailer did not get the code")
	}
}

func TestSignupOTPMailFailureFallsBackToPreview(t *testing.T) {
	env := authtest.New(t, authtest.WithMailer())
	env.Mailer.Err = errors.New("smtp down")

	res, err := env.Engine.RequestSignupOTP(context.Background(), signupRequest("asha@example.com"))
	if err != nil {
		t.Fatalf("mail failure must not fail the request: %v", err)
	}
	if res.Delivered || res.Preview == "" {
		t.Fatalf("expected preview fallback, got %+v", res)
	}
}

func TestSignupOTPNoPreviewInProduction(t *testing.T) {
	env := authtest.New(t, authtest.WithConfig(func(cfg *stayAuth.Config) {
		cfg.Security.ProductionMode = true
		cfg.JWT.AccessSecret = []byte("prod-access-secret-0123456789")
		cfg.JWT.RefreshSecret = []byte("prod-refresh-secret-0123456789")
	}))
	res, err := env.Engine.RequestSignupOTP(context.Background(), signupRequest("asha@example.com"))
	if err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	if res.Preview != "" {
		t.Fatal("production must never preview the OTP")
	}
}

func TestSignupOTPWrongCodeKeepsRecord(t *testing.T) {
	env := authtest.New(t)
	ctx := context.Background()
	res, _ := env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))

	wrong := "100000"
	if res.Preview == wrong {
		wrong = "100001"
	}
	if _, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: wrong}); !errors.Is(err, stayAuth.ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
	if _, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: res.Preview}); err != nil {
		t.Fatalf("right code after a wrong one: %v", err)
	}
}

func TestSignupOTPExpiry(t *testing.T) {
	env := authtest.New(t)
	ctx := context.Background()
	res, _ := env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))

	env.Clock.Advance(10 * time.Minute)
	req := stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: res.Preview}
	if _, err := env.Engine.VerifySignupOTP(ctx, req); !errors.Is(err, stayAuth.ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if _, err := env.Engine.VerifySignupOTP(ctx, req); !errors.Is(err, stayAuth.ErrOTPNotFound) {
		t.Fatalf("expired record should be deleted, got %v", err)
	}
}

func TestSignupOTPReRequestReplacesCode(t *testing.T) {
	env := authtest.New(t)
	ctx := context.Background()

	first, _ := env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))
	var second stayAuth.SignupOTPResult
	for {
		second, _ = env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))
		if second.Preview != first.Preview {
			break
		}
	}
	if env.Pending.Len() != 1 {
		t.Fatalf("expected one pending record, got %d", env.Pending.Len())
	}
	if _, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: first.Preview}); !errors.Is(err, stayAuth.ErrOTPInvalid) {
		t.Fatalf("superseded code must fail, got %v", err)
	}
	if _, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: second.Preview}); err != nil {
		t.Fatalf("latest code: %v", err)
	}
}

func TestSignupOTPRejectsExistingAccount(t *testing.T) {
	env := authtest.New(t)
	ctx := context.Background()

	res, _ := env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))
	env.Register(t, "asha@example.com", password, "")

	_, err := env.Engine.VerifySignupOTP(ctx, stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: res.Preview})
	if !errors.Is(err, stayAuth.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if env.Pending.Len() != 0 {
		t.Fatal("pending record for a taken email should be dropped")
	}

	if _, err := env.Engine.RequestSignupOTP(ctx, signupRequest("asha@example.com")); !errors.Is(err, stayAuth.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists on request, got %v", err)
	}
}

func TestVerifyWithoutPending(t *testing.T) {
	env := authtest.New(t)
	_, err := env.Engine.VerifySignupOTP(context.Background(), stayAuth.VerifyOTPRequest{Email: "x@example.com", OTP: "123456"})
	if !errors.Is(err, stayAuth.ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound, got %v", err)
	}
}

// flakyUsers fails CreateUser while down is set.
type flakyUsers struct {
	*memstore.Users
	down atomic.Bool
}

var errStoreDown = errors.New("db timeout")

func (f *flakyUsers) CreateUser(ctx context.Context, input stayAuth.CreateUserInput) (stayAuth.UserRecord, error) {
	if f.down.Load() {
		return stayAuth.UserRecord{}, errStoreDown
	}
	return f.Users.CreateUser(ctx, input)
}

func TestSignupOTPSurvivesUserStoreFailure(t *testing.T) {
	users := &flakyUsers{Users: memstore.NewUsers()}
	pending := memstore.NewPendingSignups()
	engine, err := stayAuth.New().
		WithConfig(authtest.FastConfig()).
		WithUserStore(users).
		WithPendingStore(pending).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	ctx := context.Background()

	res, err := engine.RequestSignupOTP(ctx, signupRequest("asha@example.com"))
	if err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}

	users.down.Store(true)
	verify := stayAuth.VerifyOTPRequest{Email: "asha@example.com", OTP: res.Preview}
	if _, err := engine.VerifySignupOTP(ctx, verify); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if pending.Len() != 1 || users.Len() != 0 {
		t.Fatalf("pending=%d users=%d, want the signup kept and no user", pending.Len(), users.Len())
	}

	users.down.Store(false)
	session, err := engine.VerifySignupOTP(ctx, verify)
	if err != nil {
		t.Fatalf("retry with the same code: %v", err)
	}
	if session.User.Email != "asha@example.com" || pending.Len() != 0 || users.Len() != 1 {
		t.Fatalf("unexpected state after retry: %+v pending=%d users=%d", session.User, pending.Len(), users.Len())
	}
}

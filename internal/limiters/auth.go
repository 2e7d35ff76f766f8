package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/stayAuth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("auth rate limited")
	ErrRedisUnavailable = errors.New("auth limiter redis unavailable")
)

// AuthConfig sets per-window budgets. A non-positive budget disables that
// throttle.
type AuthConfig struct {
	EnableIPThrottle bool
	MaxLoginFailures int
	LoginWindow      time.Duration
	MaxOTPRequests   int
	OTPWindow        time.Duration
	MaxResetRequests int
	ResetWindow      time.Duration
}

// AuthLimiter throttles login failures, OTP sends and reset requests per
// email and, optionally, per client IP.
type AuthLimiter struct {
	window *rate.FixedWindow
	config AuthConfig
}

// NewAuthLimiter returns a limiter backed by redisClient.
func NewAuthLimiter(redisClient redis.UniversalClient, cfg AuthConfig) *AuthLimiter {
	return &AuthLimiter{
		window: rate.NewFixedWindow(redisClient),
		config: cfg,
	}
}

// CheckLogin fails once the failure budget for the email or IP is spent.
// It does not count the attempt; call RecordLoginFailure for that.
func (l *AuthLimiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if err := mapErr(l.window.Check(ctx, key, l.config.MaxLoginFailures)); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoginFailure counts one failed login.
func (l *AuthLimiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if _, err := l.window.Increment(ctx, key, l.config.LoginWindow); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// ResetLogin clears the per-email failure counter after a successful login.
// The IP counter is left alone so one good account cannot unlock an IP.
func (l *AuthLimiter) ResetLogin(ctx context.Context, email string) error {
	if l == nil || l.config.MaxLoginFailures <= 0 {
		return nil
	}
	return mapErr(l.window.Reset(ctx, loginEmailKey(email)))
}

// CheckOTPRequest counts one OTP send and fails when over budget.
func (l *AuthLimiter) CheckOTPRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxOTPRequests <= 0 {
		return nil
	}
	if err := mapErr(l.window.Hit(ctx, "aotp:"+normalize(email), l.config.MaxOTPRequests, l.config.OTPWindow)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return mapErr(l.window.Hit(ctx, "aotpip:"+ip, l.config.MaxOTPRequests, l.config.OTPWindow))
	}
	return nil
}

// CheckResetRequest counts one password reset request and fails when over budget.
func (l *AuthLimiter) CheckResetRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxResetRequests <= 0 {
		return nil
	}
	if err := mapErr(l.window.Hit(ctx, "apri:"+normalize(email), l.config.MaxResetRequests, l.config.ResetWindow)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return mapErr(l.window.Hit(ctx, "aprip:"+ip, l.config.MaxResetRequests, l.config.ResetWindow))
	}
	return nil
}

func (l *AuthLimiter) loginKeys(email, ip string) []string {
	keys := []string{loginEmailKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "ali:"+ip)
	}
	return keys
}

func loginEmailKey(email string) string {
	return "al:" + normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, rate.ErrRedisUnavailable):
		return errors.Join(ErrRedisUnavailable, err)
	default:
		return err
	}
}

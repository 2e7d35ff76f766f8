package stayAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/stayAuth/captcha"
	"github.com/MrEthical07/stayAuth/internal"
	"github.com/MrEthical07/stayAuth/internal/audit"
	"github.com/MrEthical07/stayAuth/internal/limiters"
	"github.com/MrEthical07/stayAuth/jwt"
	"github.com/MrEthical07/stayAuth/password"
	"go.uber.org/zap"
)

// Engine runs the authentication flows. It is safe for concurrent use once
// built.
type Engine struct {
	config       Config
	users        UserStore
	pending      PendingSignupStore
	captcha      *captcha.Issuer
	mailer       Mailer
	limiter      *limiters.AuthLimiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	requests     *requestValidator
	dummyHash    string
	jwtManager   *jwt.Manager
	logger       *zap.Logger
	clock        func() time.Time
}

// Close flushes the audit dispatcher and closes its sink.
func (e *Engine) Close() error {
	if e == nil || e.audit == nil {
		return nil
	}
	return e.audit.Close()
}

// AuditDropped returns how many audit events were lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every engine counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ProductionMode reports whether development aids are switched off.
func (e *Engine) ProductionMode() bool {
	return e.config.Security.ProductionMode
}

// AccessTTL is the lifetime of access tokens.
func (e *Engine) AccessTTL() time.Duration {
	return e.jwtManager.AccessTTL()
}

// RefreshTTL is the lifetime of refresh tokens and of the refresh cookie.
func (e *Engine) RefreshTTL() time.Duration {
	return e.jwtManager.RefreshTTL()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

/*
====================================
CAPTCHA
====================================
*/

// IssueCaptcha creates a single-use challenge scoped to purpose. An empty
// purpose becomes captcha.DefaultPurpose.
func (e *Engine) IssueCaptcha(ctx context.Context, purpose string) (captcha.Challenge, error) {
	challenge, err := e.captcha.Issue(ctx, purpose)
	if err != nil {
		return captcha.Challenge{}, err
	}
	e.metricInc(MetricCaptchaIssued)
	return challenge, nil
}

// VerifyCaptcha consumes the challenge whatever the outcome. Other services
// (bookings, listings) call it with their own purpose.
func (e *Engine) VerifyCaptcha(ctx context.Context, id, text, purpose string) (bool, error) {
	return e.captcha.Verify(ctx, id, text, purpose)
}

/*
====================================
ACCESS TOKEN VALIDATION
====================================
*/

// Validate checks an access token. ModeInherit uses the configured mode;
// ModeStrict additionally requires the user to exist with an active refresh
// session and reports the stored role.
func (e *Engine) Validate(ctx context.Context, token string, mode RouteMode) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	result := &AuthResult{
		UserID: claims.Subject,
		Role:   Role(claims.Role),
		Email:  claims.Email,
	}

	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}
	if mode != ModeStrict {
		return result, nil
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.RefreshTokenHash == "" {
		return nil, ErrUnauthorized
	}
	result.Role = user.Role
	result.Email = user.Email
	return result, nil
}

/*
====================================
SESSION ISSUANCE
====================================
*/

// issueSession signs a new token pair and makes the refresh token the only
// valid one for user.
func (e *Engine) issueSession(ctx context.Context, user UserRecord) (SessionResult, error) {
	access, refresh, err := e.signPair(user)
	if err != nil {
		return SessionResult{}, err
	}
	if err := e.users.SetRefreshTokenHash(ctx, user.ID, internal.HashToken(refresh.token)); err != nil {
		return SessionResult{}, fmt.Errorf("store refresh hash: %w", err)
	}
	user.RefreshTokenHash = internal.HashToken(refresh.token)
	return sessionResult(user, access, refresh), nil
}

type signedToken struct {
	token     string
	expiresAt time.Time
}

func (e *Engine) signPair(user UserRecord) (signedToken, signedToken, error) {
	access, accessExp, err := e.jwtManager.CreateAccess(user.ID, string(user.Role), user.Email)
	if err != nil {
		return signedToken{}, signedToken{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := e.jwtManager.CreateRefresh(user.ID)
	if err != nil {
		return signedToken{}, signedToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signedToken{access, accessExp}, signedToken{refresh, refreshExp}, nil
}

func sessionResult(user UserRecord, access, refresh signedToken) SessionResult {
	return SessionResult{
		AccessToken:      access.token,
		RefreshToken:     refresh.token,
		AccessExpiresAt:  access.expiresAt,
		RefreshExpiresAt: refresh.expiresAt,
		User:             ToPublicView(user),
	}
}

/*
====================================
THROTTLING
====================================
*/

// throttled maps a limiter result. A Redis outage is logged and the request
// allowed through; only a spent budget rejects.
func (e *Engine) throttled(ctx context.Context, scope, email string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRateLimited):
		e.emitRateLimit(ctx, scope, email)
		return ErrRateLimited
	default:
		e.logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
		return nil
	}
}

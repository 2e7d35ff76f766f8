package stayAuth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/stayAuth/internal"
	"go.uber.org/zap"
)

// Login checks the captcha for the login purpose, then the credentials, and
// starts a new session. Any refresh token issued earlier stops working.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (SessionResult, error) {
	if e == nil || e.passwordHash == nil {
		return SessionResult{}, ErrEngineNotReady
	}
	cmd, err := req.validate(e.requests)
	if err != nil {
		if errors.Is(err, ErrCaptchaRequired) {
			e.metricInc(MetricCaptchaRejected)
		}
		return SessionResult{}, err
	}
	ip := clientIPFromContext(ctx)

	if err := e.throttled(ctx, "login", cmd.email, e.limiter.CheckLogin(ctx, cmd.email, ip)); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", cmd.email, err, nil)
		return SessionResult{}, err
	}

	ok, err := e.captcha.Verify(ctx, cmd.captchaID, cmd.captchaText, e.config.Captcha.LoginPurpose)
	if err != nil {
		return SessionResult{}, fmt.Errorf("verify captcha: %w", err)
	}
	if !ok {
		e.metricInc(MetricCaptchaRejected)
		e.emitAudit(ctx, auditEventCaptchaRejected, false, "", cmd.email, ErrCaptchaInvalid, func() map[string]string {
			return map[string]string{"purpose": e.config.Captcha.LoginPurpose}
		})
		return SessionResult{}, ErrCaptchaInvalid
	}

	user, err := e.users.GetUserByEmail(ctx, cmd.email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return SessionResult{}, fmt.Errorf("load user: %w", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		_, _ = e.passwordHash.Verify(cmd.password, e.dummyHash)
		return SessionResult{}, e.loginFailed(ctx, cmd.email, ip, "")
	}

	matches, err := e.passwordHash.Verify(cmd.password, user.PasswordHash)
	if err != nil {
		return SessionResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !matches {
		return SessionResult{}, e.loginFailed(ctx, cmd.email, ip, user.ID)
	}

	if err := e.limiter.ResetLogin(ctx, cmd.email); err != nil {
		e.logger.Warn("reset login counter", zap.Error(err))
	}
	e.upgradeHash(ctx, user, cmd.password)

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.Email, nil, nil)
	return session, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, userID string) error {
	if err := e.limiter.RecordLoginFailure(ctx, email, ip); err != nil {
		e.logger.Warn("record login failure", zap.Error(err))
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// upgradeHash re-hashes the password when the stored hash uses weaker
// parameters than the current config. Failures are logged only.
func (e *Engine) upgradeHash(ctx context.Context, user UserRecord, plain string) {
	stale, err := e.passwordHash.NeedsRehash(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.passwordHash.Hash(plain)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.Warn("password rehash", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Refresh rotates the session. The presented token must match the stored
// hash; the swap to the new hash is a compare-and-set so two concurrent
// refreshes with the same token cannot both succeed.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (SessionResult, error) {
	if e == nil || e.jwtManager == nil {
		return SessionResult{}, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return SessionResult{}, ErrRefreshMissing
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		return SessionResult{}, e.refreshFailed(ctx, "", ErrRefreshInvalid)
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return SessionResult{}, e.refreshFailed(ctx, claims.Subject, ErrRefreshInvalid)
		}
		return SessionResult{}, fmt.Errorf("load user: %w", err)
	}

	presented := internal.HashToken(refreshToken)
	if user.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshTokenHash)) != 1 {
		return SessionResult{}, e.refreshReused(ctx, user)
	}

	access, refresh, err := e.signPair(user)
	if err != nil {
		return SessionResult{}, err
	}
	next := internal.HashToken(refresh.token)
	if err := e.users.RotateRefreshTokenHash(ctx, user.ID, presented, next); err != nil {
		if errors.Is(err, ErrRefreshHashMismatch) {
			return SessionResult{}, e.refreshReused(ctx, user)
		}
		return SessionResult{}, fmt.Errorf("rotate refresh hash: %w", err)
	}
	user.RefreshTokenHash = next

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, user.Email, nil, nil)
	return sessionResult(user, access, refresh), nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, "", err, nil)
	return err
}

// refreshReused handles a correctly signed token that is no longer the
// current one. The live session is left alone.
func (e *Engine) refreshReused(ctx context.Context, user UserRecord) error {
	e.metricInc(MetricRefreshFailure)
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, user.ID, user.Email, ErrRefreshHashMismatch, nil)
	return ErrRefreshInvalid
}

// Logout clears the stored refresh hash of the token's owner. It never
// fails: bad tokens and store errors are logged and ignored.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	if e == nil || e.jwtManager == nil || refreshToken == "" {
		return
	}
	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		return
	}
	if err := e.users.SetRefreshTokenHash(ctx, claims.Subject, ""); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("logout: clear refresh hash", zap.String("user_id", claims.Subject), zap.Error(err))
		}
		return
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, "", nil, nil)
}

package stayAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/stayAuth/internal"
	"go.uber.org/zap"
)

// RequestPasswordReset issues a reset token when email belongs to a user.
// The outcome is indistinguishable for unknown emails. The plaintext token
// is mailed when a mailer is configured and returned in the result only
// outside production mode.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (PasswordResetResult, error) {
	if e == nil || e.users == nil {
		return PasswordResetResult{}, ErrEngineNotReady
	}
	email = NormalizeEmail(email)
	e.metricInc(MetricPasswordResetRequest)

	ip := clientIPFromContext(ctx)
	if err := e.throttled(ctx, "password_reset", email, e.limiter.CheckResetRequest(ctx, email, ip)); err != nil {
		return PasswordResetResult{}, err
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", email, ErrUserNotFound, nil)
			return PasswordResetResult{}, nil
		}
		return PasswordResetResult{}, fmt.Errorf("load user: %w", err)
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return PasswordResetResult{}, fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := e.now().Add(e.config.PasswordReset.ResetTTL)
	if err := e.users.SetResetToken(ctx, user.ID, internal.HashToken(token), expiresAt); err != nil {
		return PasswordResetResult{}, fmt.Errorf("store reset token: %w", err)
	}

	if e.mailer != nil {
		if err := e.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
			e.logger.Warn("reset delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, user.Email, nil, nil)

	if e.ProductionMode() {
		return PasswordResetResult{}, nil
	}
	return PasswordResetResult{Token: token}, nil
}

// ConfirmPasswordReset sets a new password using a reset token. An unknown
// or expired token is rejected before any hashing work. The token is
// consumed atomically, so it works at most once.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, req ResetPasswordRequest) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if err := req.validate(e.requests); err != nil {
		return err
	}

	tokenHash := internal.HashToken(req.Token)
	if _, err := e.users.GetUserByResetToken(ctx, tokenHash, e.now()); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.resetFailed(ctx)
		}
		return fmt.Errorf("load reset token: %w", err)
	}

	hash, err := e.passwordHash.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// The lookup above is only a gate; the consume decides the winner.
	user, err := e.users.ConsumeResetToken(ctx, tokenHash, e.now(), hash)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.resetFailed(ctx)
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if e.config.Security.RevokeSessionsOnPasswordReset {
		e.revokeSession(ctx, user.ID)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, user.Email, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context) error {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordResetInvalid, nil)
	return ErrPasswordResetInvalid
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if err := req.validate(e.requests); err != nil {
		return err
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	matches, err := e.passwordHash.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !matches {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, user.ID, user.Email, ErrCurrentPasswordInvalid, nil)
		return ErrCurrentPasswordInvalid
	}

	hash, err := e.passwordHash.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if e.config.Security.RevokeSessionsOnPasswordChange {
		e.revokeSession(ctx, user.ID)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.ID, user.Email, nil, nil)
	return nil
}

// revokeSession clears the refresh hash. The password is already changed
// at this point, so a failure is logged rather than returned.
func (e *Engine) revokeSession(ctx context.Context, userID string) {
	if err := e.users.SetRefreshTokenHash(ctx, userID, ""); err != nil {
		e.logger.Error("revoke session after password update", zap.String("user_id", userID), zap.Error(err))
	}
}

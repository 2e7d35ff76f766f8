package stayAuth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/stayAuth/internal"
	"go.uber.org/zap"
)

// RequestSignupOTP stages a registration and sends a 6-digit code to the
// email. A new request for the same email replaces the previous one, so at
// most one code is live per address.
func (e *Engine) RequestSignupOTP(ctx context.Context, req SignupOTPRequest) (SignupOTPResult, error) {
	if e == nil || e.passwordHash == nil {
		return SignupOTPResult{}, ErrEngineNotReady
	}
	cmd, err := req.validate(e.requests)
	if err != nil {
		return SignupOTPResult{}, err
	}

	if err := e.ensureEmailFree(ctx, cmd.email); err != nil {
		return SignupOTPResult{}, err
	}
	ip := clientIPFromContext(ctx)
	if err := e.throttled(ctx, "signup_otp", cmd.email, e.limiter.CheckOTPRequest(ctx, cmd.email, ip)); err != nil {
		return SignupOTPResult{}, err
	}

	otp, err := internal.NewOTP()
	if err != nil {
		return SignupOTPResult{}, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := e.passwordHash.Hash(cmd.password)
	if err != nil {
		return SignupOTPResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := e.now()
	err = e.pending.UpsertPending(ctx, PendingSignup{
		Email:         cmd.email,
		Name:          cmd.name,
		Phone:         cmd.phone,
		PasswordHash:  hash,
		Role:          cmd.role,
		TermsAccepted: true,
		OTPHash:       internal.HashToken(otp),
		OTPExpiresAt:  now.Add(e.config.Signup.OTPTTL),
		OTPVerified:   false,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return SignupOTPResult{}, fmt.Errorf("store pending signup: %w", err)
	}

	result := SignupOTPResult{Delivered: e.deliverOTP(ctx, cmd.email, otp)}
	if !result.Delivered && !e.ProductionMode() {
		result.Preview = otp
	}

	e.metricInc(MetricSignupOTPRequested)
	e.emitAudit(ctx, auditEventSignupOTPRequested, true, "", cmd.email, nil, func() map[string]string {
		if result.Delivered {
			return map[string]string{"delivery": "email"}
		}
		return map[string]string{"delivery": "none"}
	})
	return result, nil
}

// deliverOTP reports whether the mailer accepted the code. Send errors are
// logged and treated as "not delivered".
func (e *Engine) deliverOTP(ctx context.Context, email, otp string) bool {
	if e.mailer == nil {
		if !e.ProductionMode() {
			e.logger.Debug("otp not mailed: no mailer configured", zap.String("email", email), zap.String("otp", otp))
		}
		return false
	}
	if err := e.mailer.SendOTP(ctx, email, otp); err != nil {
		e.logger.Warn("otp delivery failed", zap.String("email", email), zap.Error(err))
		return false
	}
	return true
}

// VerifySignupOTP confirms the code and turns the pending signup into a
// user. A wrong code leaves the pending record in place; an expired one is
// deleted. The pending record is consumed with a compare-and-delete, so a
// code can create at most one user. If the user store then fails, the
// record is put back.
func (e *Engine) VerifySignupOTP(ctx context.Context, req VerifyOTPRequest) (SessionResult, error) {
	if e == nil || e.pending == nil {
		return SessionResult{}, ErrEngineNotReady
	}
	email, otp, err := req.validate(e.requests)
	if err != nil {
		return SessionResult{}, err
	}

	pending, err := e.pending.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			return SessionResult{}, e.otpFailed(ctx, email, ErrOTPNotFound)
		}
		return SessionResult{}, fmt.Errorf("load pending signup: %w", err)
	}

	if !e.now().Before(pending.OTPExpiresAt) {
		if err := e.pending.DeletePending(ctx, email); err != nil {
			e.logger.Warn("delete expired pending signup", zap.String("email", email), zap.Error(err))
		}
		return SessionResult{}, e.otpFailed(ctx, email, ErrOTPExpired)
	}

	otpHash := internal.HashToken(otp)
	if subtle.ConstantTimeCompare([]byte(otpHash), []byte(pending.OTPHash)) != 1 {
		return SessionResult{}, e.otpFailed(ctx, email, ErrOTPInvalid)
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		if err := e.pending.DeletePending(ctx, email); err != nil {
			e.logger.Warn("delete superseded pending signup", zap.String("email", email), zap.Error(err))
		}
		e.registerDuplicate(ctx, email)
		return SessionResult{}, ErrAccountExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return SessionResult{}, fmt.Errorf("load user: %w", err)
	}

	consumed, err := e.pending.ConsumePending(ctx, email, otpHash)
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			// Lost a race with another verify or a fresh OTP request.
			return SessionResult{}, e.otpFailed(ctx, email, ErrOTPNotFound)
		}
		return SessionResult{}, fmt.Errorf("consume pending signup: %w", err)
	}

	user, err := e.createUser(ctx, CreateUserInput{
		Email:        consumed.Email,
		Name:         consumed.Name,
		Phone:        consumed.Phone,
		PasswordHash: consumed.PasswordHash,
		Role:         consumed.Role,
	})
	if err != nil {
		if !errors.Is(err, ErrAccountExists) {
			e.restorePending(ctx, consumed)
		}
		return SessionResult{}, err
	}

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}

	e.metricInc(MetricSignupOTPVerified)
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventSignupOTPVerified, true, user.ID, user.Email, nil, func() map[string]string {
		return map[string]string{"method": "otp", "role": string(user.Role)}
	})
	return session, nil
}

// restorePending puts a consumed signup back after user creation failed,
// so the same code can be retried. A newer request for the email wins.
func (e *Engine) restorePending(ctx context.Context, consumed PendingSignup) {
	if _, err := e.pending.GetPending(ctx, consumed.Email); err == nil {
		return
	}
	consumed.OTPVerified = false
	consumed.UpdatedAt = e.now()
	if err := e.pending.UpsertPending(ctx, consumed); err != nil {
		e.logger.Error("restore pending signup", zap.String("email", consumed.Email), zap.Error(err))
	}
}

func (e *Engine) otpFailed(ctx context.Context, email string, err error) error {
	e.metricInc(MetricSignupOTPFailure)
	e.emitAudit(ctx, auditEventSignupOTPFailure, false, "", email, err, nil)
	return err
}

package stayAuth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Register creates a user directly, without OTP confirmation, and starts a
// session for it.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (SessionResult, error) {
	if e == nil || e.passwordHash == nil {
		return SessionResult{}, ErrEngineNotReady
	}
	cmd, err := req.validate(e.requests)
	if err != nil {
		return SessionResult{}, err
	}

	if err := e.ensureEmailFree(ctx, cmd.email); err != nil {
		return SessionResult{}, err
	}

	hash, err := e.passwordHash.Hash(cmd.password)
	if err != nil {
		return SessionResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := e.createUser(ctx, CreateUserInput{
		Email:        cmd.email,
		Name:         cmd.name,
		PasswordHash: hash,
		Role:         cmd.role,
	})
	if err != nil {
		return SessionResult{}, err
	}

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, user.Email, nil, func() map[string]string {
		return map[string]string{"method": "direct", "role": string(user.Role)}
	})
	return session, nil
}

// ensureEmailFree returns ErrAccountExists when a user already owns email.
func (e *Engine) ensureEmailFree(ctx context.Context, email string) error {
	_, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		e.registerDuplicate(ctx, email)
		return ErrAccountExists
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("load user: %w", err)
	}
}

// createUser maps a unique-index race to ErrAccountExists.
func (e *Engine) createUser(ctx context.Context, input CreateUserInput) (UserRecord, error) {
	user, err := e.users.CreateUser(ctx, input)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.registerDuplicate(ctx, input.Email)
			return UserRecord{}, ErrAccountExists
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (e *Engine) registerDuplicate(ctx context.Context, email string) {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", email, ErrAccountExists, nil)
}

// SeedAdmin creates an admin account named "Admin" unless one with email
// already exists. It reports whether a user was created. Empty arguments
// are a no-op so callers can pass unset environment values through.
func (e *Engine) SeedAdmin(ctx context.Context, email, plain string) (bool, error) {
	if e == nil || e.passwordHash == nil {
		return false, ErrEngineNotReady
	}
	email = NormalizeEmail(email)
	if email == "" || plain == "" {
		return false, nil
	}

	_, err := e.users.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("load admin: %w", err)
	}

	hash, err := e.passwordHash.Hash(plain)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		Name:         "Admin",
		PasswordHash: hash,
		Role:         RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}

	e.logger.Info("admin user seeded", zap.String("email", user.Email))
	e.emitAudit(ctx, auditEventAdminSeeded, true, user.ID, user.Email, nil, nil)
	return true, nil
}

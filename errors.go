package stayAuth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by stores when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when the email already belongs to a user.
	ErrAccountExists = errors.New("account already exists")
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid request")

	ErrCaptchaRequired = errors.New("captcha required")
	ErrCaptchaInvalid  = errors.New("captcha invalid or expired")
	// ErrOTPNotFound means there is no pending signup for the email.
	ErrOTPNotFound = errors.New("no pending signup")
	ErrOTPExpired  = errors.New("otp expired")
	ErrOTPInvalid  = errors.New("invalid otp")

	// ErrPendingNotFound is returned by pending-signup stores.
	ErrPendingNotFound = errors.New("pending signup not found")
	ErrRefreshMissing  = errors.New("missing refresh token")
	ErrRefreshInvalid  = errors.New("invalid refresh token")
	// ErrRefreshHashMismatch is returned by UserStore.RotateRefreshTokenHash
	// when the stored hash is no longer the expected one.
	ErrRefreshHashMismatch = errors.New("refresh token hash mismatch")
	// ErrPasswordResetInvalid covers unknown, expired and already used reset tokens.
	ErrPasswordResetInvalid   = errors.New("password reset token invalid")
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrRateLimited            = errors.New("rate limited")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrEngineNotReady         = errors.New("engine not initialized")
)

// ValidationError describes a rejected request field. Message is safe to
// show to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

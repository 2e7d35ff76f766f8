package stayAuth

import (
	"context"
	"time"
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// signupRole maps a self-service signup request to a role. Only "host" is
// honoured; anything else, including "admin", becomes guest.
func signupRole(requested string) Role {
	if requested == string(RoleHost) {
		return RoleHost
	}
	return RoleGuest
}

// UserRecord is the persisted user. Email is always stored lowercased and
// trimmed. Hash fields are empty when unset; ResetTokenExpiresAt is zero
// when no reset is pending.
type UserRecord struct {
	ID                  string
	Email               string
	Name                string
	Phone               string
	PasswordHash        string
	Role                Role
	RefreshTokenHash    string
	ResetTokenHash      string
	ResetTokenExpiresAt time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the client-facing projection of a UserRecord. It never
// carries any hash.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToPublicView maps a stored user to its public representation.
func ToPublicView(u UserRecord) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// CreateUserInput is passed to UserStore.CreateUser.
type CreateUserInput struct {
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         Role
}

// ProfileUpdate carries the optional fields of a profile change. A nil
// pointer leaves the field untouched.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// PendingSignup stages a registration until its OTP is confirmed.
type PendingSignup struct {
	Email         string
	Name          string
	Phone         string
	PasswordHash  string
	Role          Role
	TermsAccepted bool
	OTPHash       string
	OTPExpiresAt  time.Time
	OTPVerified   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserStore is the credential store.
//
// RotateRefreshTokenHash and ConsumeResetToken must be atomic with respect
// to concurrent callers: exactly one of two racing calls with the same
// expected value may succeed.
type UserStore interface {
	// CreateUser returns ErrAccountExists when the email is taken.
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	// GetUserByEmail and GetUserByID return ErrUserNotFound when absent.
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	// SetRefreshTokenHash overwrites the stored hash; "" clears it.
	SetRefreshTokenHash(ctx context.Context, userID, hash string) error
	// RotateRefreshTokenHash replaces current with next, or returns
	// ErrRefreshHashMismatch when the stored hash differs from current.
	RotateRefreshTokenHash(ctx context.Context, userID, current, next string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetResetToken(ctx context.Context, userID, hash string, expiresAt time.Time) error
	// GetUserByResetToken returns the user whose reset hash matches and has
	// not expired at now, without consuming it; ErrUserNotFound otherwise.
	GetUserByResetToken(ctx context.Context, hash string, now time.Time) (UserRecord, error)
	// ConsumeResetToken finds the user whose reset hash matches and has not
	// expired at now, stores newPasswordHash and clears the reset token.
	// It returns ErrUserNotFound when no such user exists.
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, newPasswordHash string) (UserRecord, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error)
}

// PendingSignupStore holds at most one PendingSignup per email.
type PendingSignupStore interface {
	// UpsertPending replaces any record for the same email.
	UpsertPending(ctx context.Context, pending PendingSignup) error
	// GetPending returns ErrPendingNotFound when absent.
	GetPending(ctx context.Context, email string) (PendingSignup, error)
	DeletePending(ctx context.Context, email string) error
	// ConsumePending deletes and returns the record only if its OTP hash
	// still equals otpHash; otherwise ErrPendingNotFound.
	ConsumePending(ctx context.Context, email, otpHash string) (PendingSignup, error)
}

// Mailer delivers one-time codes and reset tokens. A nil Mailer means
// delivery is unavailable.
type Mailer interface {
	SendOTP(ctx context.Context, to, otp string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// AuthResult identifies the caller of an authenticated request.
type AuthResult struct {
	UserID string
	Role   Role
	Email  string
}

// SessionResult is returned by every operation that starts or rotates a
// session.
type SessionResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             PublicUser
}

// SignupOTPResult reports how the OTP was delivered. Preview is set only
// when delivery failed outside production mode.
type SignupOTPResult struct {
	Delivered bool
	Preview   string
}

// PasswordResetResult carries the plaintext reset token when the engine is
// allowed to disclose it (outside production mode, existing user only).
type PasswordResetResult struct {
	Token string
}

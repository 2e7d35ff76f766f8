package stayAuth

import (
	"errors"
	"time"
)

// Development secrets. They let the service start with zero configuration
// and are rejected by Validate when ProductionMode is on.
const (
	DefaultAccessSecret  = "stayease-dev-access-secret-change-me"
	DefaultRefreshSecret = "stayease-dev-refresh-secret-change-me"
)

// Config defines engine behaviour. Obtain one from DefaultConfig and
// override fields; the engine copies it at build time.
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	Captcha        CaptchaConfig
	Signup         SignupConfig
	PasswordReset  PasswordResetConfig
	RateLimit      RateLimitConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	Security       SecurityConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access and refresh token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	AccessSecret  []byte
	RefreshSecret []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the minimum password length.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/*
====================================
FLOW CONFIG
====================================
*/

// CaptchaConfig configures challenge lifetime and the purpose login checks.
type CaptchaConfig struct {
	TTL          time.Duration
	LoginPurpose string
}

// SignupConfig configures OTP based registration.
type SignupConfig struct {
	OTPTTL time.Duration
}

// PasswordResetConfig configures reset token lifetime.
type PasswordResetConfig struct {
	ResetTTL time.Duration
}

// RateLimitConfig configures the Redis fixed-window throttles. They are
// only active when the engine is built with a Redis client.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxLoginFailures int
	LoginWindow      time.Duration
	MaxOTPRequests   int
	OTPWindow        time.Duration
	MaxResetRequests int
	ResetWindow      time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups policy switches.
//
// ProductionMode disables every development aid: OTP previews and reset
// tokens are never echoed, and default secrets are refused.
type SecurityConfig struct {
	ProductionMode                 bool
	RevokeSessionsOnPasswordChange bool
	RevokeSessionsOnPasswordReset  bool
}

// ValidationMode selects how access tokens are checked.
type ValidationMode int

const (
	// ModeInherit uses the engine's configured mode.
	ModeInherit ValidationMode = iota
	// ModeJWTOnly trusts signature and expiry alone.
	ModeJWTOnly
	// ModeStrict also loads the user, requires an active refresh session
	// and takes the role from the store instead of the token.
	ModeStrict
)

// RouteMode is the per-route override accepted by Engine.Validate.
type RouteMode = ValidationMode

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns development defaults matching the original service:
// 15 minute access tokens, 7 day refresh tokens, 10 minute OTPs, 1 hour
// reset tokens and 5 minute captchas.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			AccessSecret:  []byte(DefaultAccessSecret),
			RefreshSecret: []byte(DefaultRefreshSecret),
			Issuer:        "stayease",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Captcha: CaptchaConfig{
			TTL:          5 * time.Minute,
			LoginPurpose: "login",
		},
		Signup: SignupConfig{
			OTPTTL: 10 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxLoginFailures: 10,
			LoginWindow:      15 * time.Minute,
			MaxOTPRequests:   5,
			OTPWindow:        15 * time.Minute,
			MaxResetRequests: 5,
			ResetWindow:      time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			ProductionMode:                 false,
			RevokeSessionsOnPasswordChange: true,
			RevokeSessionsOnPasswordReset:  true,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.AccessSecret) < 16 || len(c.JWT.RefreshSecret) < 16 {
			return errors.New("hs256 requires AccessSecret and RefreshSecret of at least 16 bytes")
		}
		if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
			return errors.New("JWT AccessSecret and RefreshSecret must differ")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Flows
	if c.Captcha.TTL <= 0 {
		return errors.New("Captcha TTL must be > 0")
	}
	if c.Captcha.LoginPurpose == "" {
		return errors.New("Captcha LoginPurpose must be set")
	}
	if c.Signup.OTPTTL <= 0 {
		return errors.New("Signup OTPTTL must be > 0")
	}
	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginFailures <= 0 || c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit login budget and window must be > 0")
		}
		if c.RateLimit.MaxOTPRequests <= 0 || c.RateLimit.OTPWindow <= 0 {
			return errors.New("RateLimit OTP budget and window must be > 0")
		}
		if c.RateLimit.MaxResetRequests <= 0 || c.RateLimit.ResetWindow <= 0 {
			return errors.New("RateLimit reset budget and window must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("ValidationMode must be ModeJWTOnly or ModeStrict")
	}

	// Production
	if c.Security.ProductionMode {
		if string(c.JWT.AccessSecret) == DefaultAccessSecret || string(c.JWT.RefreshSecret) == DefaultRefreshSecret {
			return errors.New("development JWT secrets are not allowed in ProductionMode")
		}
	}

	return nil
}

// LintWarning is a non-fatal configuration concern.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint flags settings that are valid but risky for a deployment.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	if string(c.JWT.AccessSecret) == DefaultAccessSecret || string(c.JWT.RefreshSecret) == DefaultRefreshSecret {
		ws = append(ws, LintWarning{Code: "dev_secrets", Message: "development JWT secrets in use"})
	}
	if !c.Security.ProductionMode {
		ws = append(ws, LintWarning{Code: "dev_previews", Message: "OTP previews and reset tokens may be returned to clients"})
	}
	if c.JWT.AccessTTL > 30*time.Minute {
		ws = append(ws, LintWarning{Code: "access_ttl_long", Message: "access tokens live longer than 30m"})
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		ws = append(ws, LintWarning{Code: "refresh_ttl_long", Message: "refresh tokens live longer than 30 days"})
	}
	if !c.RateLimit.Enabled {
		ws = append(ws, LintWarning{Code: "rate_limits_disabled", Message: "login, OTP and reset throttles are off"})
	}
	if !c.Security.RevokeSessionsOnPasswordChange || !c.Security.RevokeSessionsOnPasswordReset {
		ws = append(ws, LintWarning{Code: "sessions_survive_password_change", Message: "refresh sessions survive a password change or reset"})
	}
	return ws
}

package stayAuth

import "time"

// SecurityReport summarizes the security posture the engine was built
// with. The server logs it at startup.
type SecurityReport struct {
	ProductionMode             bool
	SigningAlgorithm           string
	StrictValidation           bool
	AccessTTL                  time.Duration
	RefreshTTL                 time.Duration
	OTPTTL                     time.Duration
	ResetTTL                   time.Duration
	CaptchaTTL                 time.Duration
	Argon2                     PasswordConfigReport
	RateLimitingActive         bool
	SharedCaptchaStore         bool
	MailerConfigured           bool
	AuditEnabled               bool
	RevokeOnPasswordChange     bool
	RevokeOnPasswordReset      bool
	DevelopmentPreviewsEnabled bool
	LintCodes                  []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		StrictValidation: e.config.ValidationMode == ModeStrict,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		OTPTTL:           e.config.Signup.OTPTTL,
		ResetTTL:         e.config.PasswordReset.ResetTTL,
		CaptchaTTL:       e.config.Captcha.TTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		RateLimitingActive:         e.limiter != nil,
		SharedCaptchaStore:         e.captcha.Shared(),
		MailerConfigured:           e.mailer != nil,
		AuditEnabled:               e.audit != nil,
		RevokeOnPasswordChange:     e.config.Security.RevokeSessionsOnPasswordChange,
		RevokeOnPasswordReset:      e.config.Security.RevokeSessionsOnPasswordReset,
		DevelopmentPreviewsEnabled: !e.config.Security.ProductionMode,
		LintCodes:                  e.config.Lint().Codes(),
	}
}

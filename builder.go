package stayAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/stayAuth/captcha"
	"github.com/MrEthical07/stayAuth/internal/audit"
	"github.com/MrEthical07/stayAuth/internal/limiters"
	"github.com/MrEthical07/stayAuth/jwt"
	"github.com/MrEthical07/stayAuth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single-use: Build may be
// called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users        UserStore
	pending      PendingSignupStore
	captchaStore captcha.Store
	mailer       Mailer
	auditSink    AuditSink
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the login, OTP and reset throttles and, unless
// WithCaptchaStore is also used, stores captchas in Redis so every
// instance sees the same challenges.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore is required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithPendingStore is required.
func (b *Builder) WithPendingStore(store PendingSignupStore) *Builder {
	b.pending = store
	return b
}

func (b *Builder) WithCaptchaStore(store captcha.Store) *Builder {
	b.captchaStore = store
	return b
}

// WithMailer sets OTP and reset delivery. Without one every OTP counts as
// undelivered.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for every expiry decision the engine makes,
// including token claims. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.pending == nil {
		return nil, errors.New("pending signup store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		users:   b.users,
		pending: b.pending,
		mailer:  b.mailer,
		logger:  logger.Named("stayauth"),
		clock:   clock,
	}

	// -------- CAPTCHA --------
	store := b.captchaStore
	if store == nil && b.redis != nil {
		store = captcha.NewRedisStore(b.redis, "")
	}
	engine.captcha = captcha.NewIssuer(store,
		captcha.WithTTL(cfg.Captcha.TTL),
		captcha.WithClock(clock),
	)

	// -------- THROTTLES --------
	if b.redis != nil && cfg.RateLimit.Enabled {
		engine.limiter = limiters.NewAuthLimiter(b.redis, limiters.AuthConfig{
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxLoginFailures: cfg.RateLimit.MaxLoginFailures,
			LoginWindow:      cfg.RateLimit.LoginWindow,
			MaxOTPRequests:   cfg.RateLimit.MaxOTPRequests,
			OTPWindow:        cfg.RateLimit.OTPWindow,
			MaxResetRequests: cfg.RateLimit.MaxResetRequests,
			ResetWindow:      cfg.RateLimit.ResetWindow,
		})
	}

	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- CREDENTIALS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph
	engine.requests = newRequestValidator(ph.MinLength())

	// Login against an unknown email still pays for one Argon2 verify.
	dummy, err := ph.Hash(strings.Repeat("x", max(cfg.Password.MinLength, 32)))
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// Started last: nothing below can fail.
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	for _, w := range cfg.Lint() {
		engine.logger.Warn("config lint", zap.String("code", w.Code), zap.String("detail", w.Message))
	}

	b.built = true

	return engine, nil
}

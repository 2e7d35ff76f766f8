// Package authtest builds engines over in-memory stores for tests, with a
// captcha store that remembers answers and a mailer that captures codes.
package authtest

import (
	"context"
	"sync"
	"testing"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/captcha"
	"github.com/MrEthical07/stayAuth/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// CaptchaStore wraps a MemoryStore and keeps every issued answer.
type CaptchaStore struct {
	*captcha.MemoryStore

	mu      sync.Mutex
	answers map[string]string
}

func NewCaptchaStore() *CaptchaStore {
	return &CaptchaStore{MemoryStore: captcha.NewMemoryStore(), answers: make(map[string]string)}
}

func (s *CaptchaStore) Put(ctx context.Context, id string, entry captcha.Entry, ttl time.Duration) error {
	s.mu.Lock()
	s.answers[id] = entry.Text
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, id, entry, ttl)
}

// Answer returns the text of challenge id, even after it was consumed.
func (s *CaptchaStore) Answer(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[id]
}

// Mailer captures the last OTP and reset token per address. Setting Err
// makes every send fail.
type Mailer struct {
	mu     sync.Mutex
	otps   map[string]string
	resets map[string]string
	Err    error
}

func NewMailer() *Mailer {
	return &Mailer{otps: make(map[string]string), resets: make(map[string]string)}
}

func (m *Mailer) SendOTP(_ context.Context, to, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.otps[to] = otp
	return nil
}

func (m *Mailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.resets[to] = token
	return nil
}

func (m *Mailer) LastOTP(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otps[to]
}

func (m *Mailer) LastReset(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[to]
}

// FastConfig is DefaultConfig with the cheapest Argon2 parameters Validate
// accepts.
func FastConfig() stayAuth.Config {
	cfg := stayAuth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type options struct {
	configure func(*stayAuth.Config)
	redis     bool
	mailer    bool
	sink      stayAuth.AuditSink
	logger    *zap.Logger
}

type Option func(*options)

// WithConfig edits the config after FastConfig.
func WithConfig(fn func(*stayAuth.Config)) Option {
	return func(o *options) { o.configure = fn }
}

// WithRedis wires a miniredis instance, which turns on the Redis limiters.
// Captchas stay on the recording store.
func WithRedis() Option {
	return func(o *options) { o.redis = true }
}

// WithMailer wires a capturing Mailer.
func WithMailer() Option {
	return func(o *options) { o.mailer = true }
}

func WithAuditSink(sink stayAuth.AuditSink) Option {
	return func(o *options) { o.sink = sink }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Env is a built engine plus handles on everything behind it.
type Env struct {
	Engine  *stayAuth.Engine
	Users   *memstore.Users
	Pending *memstore.PendingSignups
	Captcha *CaptchaStore
	Mailer  *Mailer
	Redis   *miniredis.Miniredis
	Clock   *Clock
}

func New(t testing.TB, opts ...Option) *Env {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := FastConfig()
	if o.configure != nil {
		o.configure(&cfg)
	}
	if o.sink != nil {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}

	env := &Env{
		Clock:   NewClock(time.Now().UTC().Truncate(time.Second)),
		Pending: memstore.NewPendingSignups(),
		Captcha: NewCaptchaStore(),
	}
	env.Users = memstore.NewUsers().WithClock(env.Clock.Now)

	b := stayAuth.New().
		WithConfig(cfg).
		WithUserStore(env.Users).
		WithPendingStore(env.Pending).
		WithCaptchaStore(env.Captcha).
		WithClock(env.Clock.Now)

	if o.redis {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis start failed: %v", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = rdb.Close()
			mr.Close()
		})
		env.Redis = mr
		b = b.WithRedis(rdb)
	}
	if o.mailer {
		env.Mailer = NewMailer()
		b = b.WithMailer(env.Mailer)
	}
	if o.sink != nil {
		b = b.WithAuditSink(o.sink)
	}
	if o.logger != nil {
		b = b.WithLogger(o.logger)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	env.Engine = engine
	return env
}

// Login issues a login captcha and answers it.
func (e *Env) Login(t testing.TB, email, password string) (stayAuth.SessionResult, error) {
	t.Helper()
	return e.Engine.Login(context.Background(), e.LoginRequest(t, email, password))
}

// LoginRequest returns a request carrying a freshly solved captcha.
func (e *Env) LoginRequest(t testing.TB, email, password string) stayAuth.LoginRequest {
	t.Helper()
	ch, err := e.Engine.IssueCaptcha(context.Background(), "login")
	if err != nil {
		t.Fatalf("IssueCaptcha failed: %v", err)
	}
	return stayAuth.LoginRequest{
		Email:       email,
		Password:    password,
		CaptchaID:   ch.ID,
		CaptchaText: e.Captcha.Answer(ch.ID),
	}
}

// Register creates a user directly and fails the test on error.
func (e *Env) Register(t testing.TB, email, password, role string) stayAuth.SessionResult {
	t.Helper()
	s, err := e.Engine.Register(context.Background(), stayAuth.RegisterRequest{
		Name:     "Test User",
		Email:    email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return s
}

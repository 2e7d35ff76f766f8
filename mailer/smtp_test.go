package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type capture struct {
	addr string
	from string
	to   []string
	msg  string
	err  error
	n    int
}

func (c *capture) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	c.n++
	c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
	return c.err
}

func newTestSender(t *testing.T, c *capture) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender(Config{
		Host:        "smtp.example.com",
		User:        "mailer@example.com",
		Pass:        "secret",
		ResetURL:    "https://stayease.test/reset?token=",
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	s.send = c.send
	return s
}

func TestNewSMTPSenderRequiresCredentials(t *testing.T) {
	if _, err := NewSMTPSender(Config{Host: "smtp.example.com"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendOTP(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)

	if err := s.SendOTP(context.Background(), "guest@example.com", "123456"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if c.addr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", c.addr)
	}
	if c.from != "mailer@example.com" {
		t.Fatalf("from should fall back to user, got %q", c.from)
	}
	if len(c.to) != 1 || c.to[0] != "guest@example.com" {
		t.Fatalf("unexpected recipients %v", c.to)
	}
	for _, want := range []string{
		"Subject: Your StayEase OTP Code",
		"Your OTP is 123456. It expires in 10 minutes.",
		"<strong>123456</strong>",
		"multipart/alternative",
	} {
		if !strings.Contains(c.msg, want) {
			t.Fatalf("message missing %q:\n%s", want, c.msg)
		}
	}
}

func TestSendPasswordResetIncludesLink(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)

	if err := s.SendPasswordReset(context.Background(), "guest@example.com", "tok"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if !strings.Contains(c.msg, "https://stayease.test/reset?token=tok") {
		t.Fatalf("reset link missing:\n%s", c.msg)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	c := &capture{err: errors.New("connection refused")}
	s := newTestSender(t, c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.SendOTP(ctx, "a@b.com", "000000"); err == nil {
			t.Fatal("expected send error")
		}
	}
	if err := s.SendOTP(ctx, "a@b.com", "000000"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if c.n != 2 {
		t.Fatalf("open breaker should not dial, got %d sends", c.n)
	}
}

func TestCanceledContextSkipsSend(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SendOTP(ctx, "a@b.com", "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.n != 0 {
		t.Fatal("send should not run")
	}
}

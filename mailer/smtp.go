package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultPort = 587
	DefaultFrom = "no-reply@stayease.app"
)

var (
	// ErrNotConfigured is returned by NewSMTPSender when host or
	// credentials are missing.
	ErrNotConfigured = errors.New("mailer: smtp not configured")
	// ErrCircuitOpen is returned while the breaker rejects sends.
	ErrCircuitOpen = errors.New("mailer: circuit open")
)

// Config holds SMTP settings. From falls back to User, then DefaultFrom.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string

	// ResetURL, when set, is prefixed to the reset token in reset mails
	// (e.g. "https://stayease.app/reset-password?token=").
	ResetURL string

	// Breaker trips after MaxFailures consecutive failures and stays open
	// for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender implements stayAuth.Mailer.
type SMTPSender struct {
	cfg     Config
	addr    string
	auth    smtp.Auth
	send    sendFunc
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSMTPSender validates cfg and returns a sender. Port 465 uses implicit
// TLS; any other port uses STARTTLS when the server offers it.
func NewSMTPSender(cfg Config, logger *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mailer")

	s := &SMTPSender{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:   smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host),
		send:   smtp.SendMail,
		logger: logger,
	}
	if cfg.Port == 465 {
		s.send = s.sendImplicitTLS
	}

	maxFailures := cfg.MaxFailures
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return s, nil
}

func (s *SMTPSender) SendOTP(ctx context.Context, to, otp string) error {
	text := fmt.Sprintf("Your OTP is %s. It expires in 10 minutes.", otp)
	html := fmt.Sprintf("<p>Your OTP is <strong>%s</strong>.</p><p>This code expires in 10 minutes.</p>", otp)
	return s.deliver(ctx, to, "Your StayEase OTP Code", text, html)
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, token string) error {
	link := s.cfg.ResetURL + token
	text := fmt.Sprintf("Use this link to reset your password: %s\nIt expires in 1 hour. If you did not ask for a reset, ignore this email.", link)
	html := fmt.Sprintf("<p>Use this link to reset your password:</p><p><a href=\"%s\">%s</a></p><p>It expires in 1 hour. If you did not ask for a reset, ignore this email.</p>", link, link)
	return s.deliver(ctx, to, "Reset your StayEase password", text, html)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject, text, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildMessage(s.cfg.From, to, subject, text, html)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.send(s.addr, s.auth, s.cfg.From, []string{to}, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrCircuitOpen
	}
	if err != nil {
		s.logger.Warn("send failed", zap.String("subject", subject), zap.Error(err))
		return err
	}
	s.logger.Debug("sent", zap.String("subject", subject))
	return nil
}

func (s *SMTPSender) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(a); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMessage renders a multipart/alternative message with a plain text
// and an HTML part.
func buildMessage(from, to, subject, text, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

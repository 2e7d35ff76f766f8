package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	minHMACSecret = 16
)

// ErrTokenInvalid covers every verification failure: bad signature, expiry,
// wrong token kind or malformed claims.
var ErrTokenInvalid = errors.New("invalid token")

// Config configures a Manager. With HS256 the access and refresh tokens are
// signed with distinct secrets; with Ed25519 one key pair signs both and the
// "type" claim keeps them apart.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	AccessSecret  []byte
	RefreshSecret []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	Now           func() time.Time
}

// AccessClaims is the payload of an access token. Subject holds the user id.
type AccessClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Type  string `json:"type"`
	gjwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. Subject holds the user id
// and ID is unique per token so that two rotations in the same second still
// produce distinct strings.
type RefreshClaims struct {
	Type string `json:"type"`
	gjwt.RegisteredClaims
}

// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	cfg       Config
	method    gjwt.SigningMethod
	edPrivate ed25519.PrivateKey
	edPublic  ed25519.PublicKey
}

// NewManager validates cfg and prepares signing keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{cfg: cfg}
	switch SigningMethod(strings.ToLower(string(cfg.SigningMethod))) {
	case MethodHS256, "":
		if len(cfg.AccessSecret) < minHMACSecret || len(cfg.RefreshSecret) < minHMACSecret {
			return nil, fmt.Errorf("hs256 secrets must be at least %d bytes", minHMACSecret)
		}
		if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
			return nil, errors.New("access and refresh secrets must differ")
		}
		m.method = gjwt.SigningMethodHS256
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		m.edPrivate = priv
		if len(cfg.PublicKey) > 0 {
			if m.edPublic, err = parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		} else {
			m.edPublic = priv.Public().(ed25519.PublicKey)
		}
		m.method = gjwt.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	return m, nil
}

// AccessTTL is the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL is the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// CreateAccess signs an access token for the given user.
func (m *Manager) CreateAccess(userID, role, email string) (string, time.Time, error) {
	now := m.cfg.Now()
	exp := now.Add(m.cfg.AccessTTL)
	claims := AccessClaims{
		Role:             role,
		Email:            email,
		Type:             TypeAccess,
		RegisteredClaims: m.registered(userID, now, exp),
	}
	token, err := m.sign(claims, m.accessKey())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// CreateRefresh signs a refresh token for the given user.
func (m *Manager) CreateRefresh(userID string) (string, time.Time, error) {
	now := m.cfg.Now()
	exp := now.Add(m.cfg.RefreshTTL)
	claims := RefreshClaims{
		Type:             TypeRefresh,
		RegisteredClaims: m.registered(userID, now, exp),
	}
	token, err := m.sign(claims, m.refreshKey())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(token, claims, m.accessVerifyKey()); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (m *Manager) ParseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(token, claims, m.refreshVerifyKey()); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *Manager) registered(subject string, now, exp time.Time) gjwt.RegisteredClaims {
	return gjwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.cfg.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  gjwt.NewNumericDate(now),
		ExpiresAt: gjwt.NewNumericDate(exp),
	}
}

func (m *Manager) sign(claims gjwt.Claims, key any) (string, error) {
	signed, err := gjwt.NewWithClaims(m.method, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(token string, claims gjwt.Claims, key any) error {
	if token == "" {
		return ErrTokenInvalid
	}
	opts := []gjwt.ParserOption{
		gjwt.WithValidMethods([]string{m.method.Alg()}),
		gjwt.WithExpirationRequired(),
		gjwt.WithTimeFunc(m.cfg.Now),
	}
	if m.cfg.Leeway > 0 {
		opts = append(opts, gjwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, gjwt.WithIssuer(m.cfg.Issuer))
	}

	parsed, err := gjwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *gjwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func (m *Manager) accessKey() any {
	if m.edPrivate != nil {
		return m.edPrivate
	}
	return m.cfg.AccessSecret
}

func (m *Manager) refreshKey() any {
	if m.edPrivate != nil {
		return m.edPrivate
	}
	return m.cfg.RefreshSecret
}

func (m *Manager) accessVerifyKey() any {
	if m.edPublic != nil {
		return m.edPublic
	}
	return m.cfg.AccessSecret
}

func (m *Manager) refreshVerifyKey() any {
	if m.edPublic != nil {
		return m.edPublic
	}
	return m.cfg.RefreshSecret
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := gjwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := gjwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

package captcha

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPurpose applies when a caller does not name one.
	DefaultPurpose = "general"
	// DefaultTTL is how long an issued challenge stays answerable.
	DefaultTTL = 5 * time.Minute
)

// Challenge is the client-facing half of an issued captcha.
type Challenge struct {
	ID               string `json:"captchaId"`
	SVG              string `json:"captchaSvg"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithTextGenerator replaces GenerateText, mainly so tests can know the answer.
func WithTextGenerator(gen func() (string, error)) Option {
	return func(i *Issuer) {
		if gen != nil {
			i.generate = gen
		}
	}
}

// Issuer creates and checks challenges against a Store.
type Issuer struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewIssuer builds an Issuer. A nil store falls back to a MemoryStore.
func NewIssuer(store Store, opts ...Option) *Issuer {
	if store == nil {
		store = NewMemoryStore()
	}
	i := &Issuer{
		store:    store,
		ttl:      DefaultTTL,
		now:      time.Now,
		generate: GenerateText,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL is the lifetime given to new challenges.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Shared reports whether challenges live outside the process, so any
// instance behind a load balancer can verify them.
func (i *Issuer) Shared() bool {
	_, local := i.store.(*MemoryStore)
	return !local
}

// Issue stores a fresh challenge for purpose and returns its id and image.
func (i *Issuer) Issue(ctx context.Context, purpose string) (Challenge, error) {
	if purpose == "" {
		purpose = DefaultPurpose
	}

	text, err := i.generate()
	if err != nil {
		return Challenge{}, err
	}
	if text == "" {
		return Challenge{}, errors.New("empty captcha text")
	}
	svg, err := RenderSVG(text)
	if err != nil {
		return Challenge{}, err
	}

	id := uuid.NewString()
	entry := Entry{
		Text:      text,
		Purpose:   purpose,
		ExpiresAt: i.now().Add(i.ttl),
	}
	if err := i.store.Put(ctx, id, entry, i.ttl); err != nil {
		return Challenge{}, err
	}

	return Challenge{
		ID:               id,
		SVG:              svg,
		ExpiresInSeconds: int(i.ttl / time.Second),
	}, nil
}

// Verify consumes the challenge and reports whether text answers it for
// purpose. The challenge is gone afterwards regardless of the result.
// Text comparison is exact and case-sensitive.
func (i *Issuer) Verify(ctx context.Context, id, text, purpose string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if purpose == "" {
		purpose = DefaultPurpose
	}

	entry, ok, err := i.store.Take(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if entry.Purpose != purpose {
		return false, nil
	}
	if !entry.ExpiresAt.After(i.now()) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(entry.Text), []byte(text)) == 1, nil
}

package memstore

import (
	"context"
	"sync"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// PendingSignups is a mutex-guarded PendingSignupStore keyed by email.
type PendingSignups struct {
	mu      sync.Mutex
	byEmail map[string]stayAuth.PendingSignup
}

var _ stayAuth.PendingSignupStore = (*PendingSignups)(nil)

func NewPendingSignups() *PendingSignups {
	return &PendingSignups{byEmail: make(map[string]stayAuth.PendingSignup)}
}

func (s *PendingSignups) UpsertPending(_ context.Context, pending stayAuth.PendingSignup) error {
	pending.Email = stayAuth.NormalizeEmail(pending.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byEmail[pending.Email]; ok && !prev.CreatedAt.IsZero() {
		pending.CreatedAt = prev.CreatedAt
	}
	s.byEmail[pending.Email] = pending
	return nil
}

func (s *PendingSignups) GetPending(_ context.Context, email string) (stayAuth.PendingSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEmail[stayAuth.NormalizeEmail(email)]
	if !ok {
		return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
	}
	return p, nil
}

func (s *PendingSignups) DeletePending(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byEmail, stayAuth.NormalizeEmail(email))
	return nil
}

func (s *PendingSignups) ConsumePending(_ context.Context, email, otpHash string) (stayAuth.PendingSignup, error) {
	email = stayAuth.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEmail[email]
	if !ok || p.OTPHash != otpHash {
		return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
	}
	delete(s.byEmail, email)
	p.OTPVerified = true
	return p, nil
}

// Len reports the number of pending records.
func (s *PendingSignups) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

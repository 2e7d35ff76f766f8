package memstore

import (
	"context"
	"sync"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/google/uuid"
)

// Users is a mutex-guarded UserStore.
type Users struct {
	mu      sync.Mutex
	byID    map[string]stayAuth.UserRecord
	byEmail map[string]string
	now     func() time.Time
}

var _ stayAuth.UserStore = (*Users)(nil)

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]stayAuth.UserRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock sets the timestamp source for CreatedAt and UpdatedAt.
func (s *Users) WithClock(now func() time.Time) *Users {
	s.now = now
	return s
}

func (s *Users) CreateUser(_ context.Context, input stayAuth.CreateUserInput) (stayAuth.UserRecord, error) {
	email := stayAuth.NormalizeEmail(input.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return stayAuth.UserRecord{}, stayAuth.ErrAccountExists
	}

	now := s.now().UTC()
	user := stayAuth.UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         input.Name,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return user, nil
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (stayAuth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[stayAuth.NormalizeEmail(email)]
	if !ok {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Users) GetUserByID(_ context.Context, userID string) (stayAuth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	return user, nil
}

func (s *Users) SetRefreshTokenHash(_ context.Context, userID, hash string) error {
	return s.mutate(userID, func(u *stayAuth.UserRecord) error {
		u.RefreshTokenHash = hash
		return nil
	})
}

func (s *Users) RotateRefreshTokenHash(_ context.Context, userID, current, next string) error {
	return s.mutate(userID, func(u *stayAuth.UserRecord) error {
		if current == "" || u.RefreshTokenHash != current {
			return stayAuth.ErrRefreshHashMismatch
		}
		u.RefreshTokenHash = next
		return nil
	})
}

func (s *Users) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return s.mutate(userID, func(u *stayAuth.UserRecord) error {
		u.PasswordHash = hash
		return nil
	})
}

func (s *Users) SetResetToken(_ context.Context, userID, hash string, expiresAt time.Time) error {
	return s.mutate(userID, func(u *stayAuth.UserRecord) error {
		u.ResetTokenHash = hash
		u.ResetTokenExpiresAt = expiresAt
		return nil
	})
}

func (s *Users) GetUserByResetToken(_ context.Context, hash string, now time.Time) (stayAuth.UserRecord, error) {
	if hash == "" {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.byID {
		if user.ResetTokenHash == hash && user.ResetTokenExpiresAt.After(now) {
			return user, nil
		}
	}
	return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
}

// ConsumeResetToken scans all users; fine for the sizes this store is
// meant for.
func (s *Users) ConsumeResetToken(_ context.Context, hash string, now time.Time, newPasswordHash string) (stayAuth.UserRecord, error) {
	if hash == "" {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, user := range s.byID {
		if user.ResetTokenHash != hash || !user.ResetTokenExpiresAt.After(now) {
			continue
		}
		user.PasswordHash = newPasswordHash
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = time.Time{}
		user.UpdatedAt = s.now().UTC()
		s.byID[id] = user
		return user, nil
	}
	return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
}

func (s *Users) UpdateProfile(_ context.Context, userID string, update stayAuth.ProfileUpdate) (stayAuth.UserRecord, error) {
	var out stayAuth.UserRecord
	err := s.mutate(userID, func(u *stayAuth.UserRecord) error {
		if update.Name != nil {
			u.Name = *update.Name
		}
		if update.Phone != nil {
			u.Phone = *update.Phone
		}
		out = *u
		return nil
	})
	if err != nil {
		return stayAuth.UserRecord{}, err
	}
	return out, nil
}

// Len reports the number of stored users.
func (s *Users) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Users) mutate(userID string, fn func(u *stayAuth.UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return stayAuth.ErrUserNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = s.now().UTC()
	s.byID[userID] = user
	return nil
}

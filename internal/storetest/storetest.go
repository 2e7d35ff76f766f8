// Package storetest holds the behavioural suite every UserStore and
// PendingSignupStore implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// RunUserStore runs the suite against stores produced by newStore. Each
// subtest gets a fresh store.
func RunUserStore(t *testing.T, newStore func(t *testing.T) stayAuth.UserStore) {
	t.Helper()

	t.Run("CreateAndLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateUser(ctx, stayAuth.CreateUserInput{
			Email:        "Alice@Example.com",
			Name:         "Alice",
			PasswordHash: "hash",
			Role:         stayAuth.RoleHost,
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if created.ID == "" || created.Email != "alice@example.com" {
			t.Fatalf("unexpected created user: %+v", created)
		}

		byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
		if err != nil || byEmail.ID != created.ID {
			t.Fatalf("GetUserByEmail: %+v %v", byEmail, err)
		}
		byID, err := s.GetUserByID(ctx, created.ID)
		if err != nil || byID.Role != stayAuth.RoleHost {
			t.Fatalf("GetUserByID: %+v %v", byID, err)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		in := stayAuth.CreateUserInput{Email: "dup@example.com", Name: "A", PasswordHash: "h", Role: stayAuth.RoleGuest}
		if _, err := s.CreateUser(ctx, in); err != nil {
			t.Fatalf("first create: %v", err)
		}
		in.Email = "DUP@example.com"
		if _, err := s.CreateUser(ctx, in); !errors.Is(err, stayAuth.ErrAccountExists) {
			t.Fatalf("expected ErrAccountExists, got %v", err)
		}
	})

	t.Run("MissingUser", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound by email, got %v", err)
		}
		if _, err := s.GetUserByID(ctx, missingID); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound by id, got %v", err)
		}
		if err := s.SetRefreshTokenHash(ctx, missingID, "x"); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound on SetRefreshTokenHash, got %v", err)
		}
	})

	t.Run("RotateRefreshIsCompareAndSet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreate(t, s, "rot@example.com")

		if err := s.SetRefreshTokenHash(ctx, u.ID, "h1"); err != nil {
			t.Fatalf("SetRefreshTokenHash: %v", err)
		}
		if err := s.RotateRefreshTokenHash(ctx, u.ID, "h1", "h2"); err != nil {
			t.Fatalf("rotate h1->h2: %v", err)
		}
		if err := s.RotateRefreshTokenHash(ctx, u.ID, "h1", "h3"); !errors.Is(err, stayAuth.ErrRefreshHashMismatch) {
			t.Fatalf("expected mismatch on stale rotate, got %v", err)
		}
		got, _ := s.GetUserByID(ctx, u.ID)
		if got.RefreshTokenHash != "h2" {
			t.Fatalf("expected h2, got %q", got.RefreshTokenHash)
		}
	})

	t.Run("ConcurrentRotateSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreate(t, s, "race@example.com")
		_ = s.SetRefreshTokenHash(ctx, u.ID, "start")

		const n = 16
		var wg sync.WaitGroup
		results := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.RotateRefreshTokenHash(ctx, u.ID, "start", "next")
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
			} else if !errors.Is(err, stayAuth.ErrRefreshHashMismatch) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("ResetTokenSingleUseAndExpiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreate(t, s, "reset@example.com")
		now := time.Now().UTC().Truncate(time.Millisecond)

		if err := s.SetResetToken(ctx, u.ID, "rh", now.Add(time.Hour)); err != nil {
			t.Fatalf("SetResetToken: %v", err)
		}
		if _, err := s.GetUserByResetToken(ctx, "other", now); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected unknown token rejected, got %v", err)
		}
		if _, err := s.GetUserByResetToken(ctx, "rh", now.Add(2*time.Hour)); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected expired lookup rejected, got %v", err)
		}
		found, err := s.GetUserByResetToken(ctx, "rh", now)
		if err != nil || found.ID != u.ID {
			t.Fatalf("GetUserByResetToken: %+v %v", found, err)
		}
		if _, err := s.ConsumeResetToken(ctx, "rh", now.Add(2*time.Hour), "new"); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected expired token rejected, got %v", err)
		}
		got, err := s.ConsumeResetToken(ctx, "rh", now, "new")
		if err != nil {
			t.Fatalf("ConsumeResetToken: %v", err)
		}
		if got.ID != u.ID || got.PasswordHash != "new" || got.ResetTokenHash != "" {
			t.Fatalf("unexpected consumed user: %+v", got)
		}
		if _, err := s.ConsumeResetToken(ctx, "rh", now, "again"); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected second consume to fail, got %v", err)
		}
		if _, err := s.GetUserByResetToken(ctx, "rh", now); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected consumed token gone, got %v", err)
		}
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustCreate(t, s, "prof@example.com")

		name := "New Name"
		got, err := s.UpdateProfile(ctx, u.ID, stayAuth.ProfileUpdate{Name: &name})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if got.Name != "New Name" || got.Phone != "555" {
			t.Fatalf("unexpected profile: %+v", got)
		}
		empty := ""
		got, err = s.UpdateProfile(ctx, u.ID, stayAuth.ProfileUpdate{Phone: &empty})
		if err != nil || got.Phone != "" || got.Name != "New Name" {
			t.Fatalf("phone clear: %+v %v", got, err)
		}
		if _, err := s.UpdateProfile(ctx, missingID, stayAuth.ProfileUpdate{Name: &name}); !errors.Is(err, stayAuth.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

// RunPendingStore runs the pending-signup suite.
func RunPendingStore(t *testing.T, newStore func(t *testing.T) stayAuth.PendingSignupStore) {
	t.Helper()

	t.Run("UpsertReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.UpsertPending(ctx, pending("p@example.com", "otp1"))
		if err := s.UpsertPending(ctx, pending("P@example.com", "otp2")); err != nil {
			t.Fatalf("UpsertPending: %v", err)
		}
		got, err := s.GetPending(ctx, "p@example.com")
		if err != nil || got.OTPHash != "otp2" {
			t.Fatalf("expected replaced record, got %+v %v", got, err)
		}
	})

	t.Run("ConsumeRequiresMatchingHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.UpsertPending(ctx, pending("c@example.com", "good"))

		if _, err := s.ConsumePending(ctx, "c@example.com", "bad"); !errors.Is(err, stayAuth.ErrPendingNotFound) {
			t.Fatalf("expected mismatch, got %v", err)
		}
		if _, err := s.GetPending(ctx, "c@example.com"); err != nil {
			t.Fatalf("record should survive a mismatch: %v", err)
		}
		got, err := s.ConsumePending(ctx, "c@example.com", "good")
		if err != nil || got.Name != "Carol" {
			t.Fatalf("ConsumePending: %+v %v", got, err)
		}
		if _, err := s.GetPending(ctx, "c@example.com"); !errors.Is(err, stayAuth.ErrPendingNotFound) {
			t.Fatalf("expected record gone, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.UpsertPending(ctx, pending("d@example.com", "x"))
		if err := s.DeletePending(ctx, "d@example.com"); err != nil {
			t.Fatalf("DeletePending: %v", err)
		}
		if _, err := s.GetPending(ctx, "d@example.com"); !errors.Is(err, stayAuth.ErrPendingNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := s.DeletePending(ctx, "d@example.com"); err != nil {
			t.Fatalf("deleting a missing record should succeed: %v", err)
		}
	})
}

// missingID is a syntactically valid id for stores that parse ids.
const missingID = "000000000000000000000000"

func mustCreate(t *testing.T, s stayAuth.UserStore, email string) stayAuth.UserRecord {
	t.Helper()
	u, err := s.CreateUser(context.Background(), stayAuth.CreateUserInput{
		Email:        email,
		Name:         "Test",
		Phone:        "555",
		PasswordHash: "hash",
		Role:         stayAuth.RoleGuest,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func pending(email, otpHash string) stayAuth.PendingSignup {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return stayAuth.PendingSignup{
		Email:         email,
		Name:          "Carol",
		Phone:         "555",
		PasswordHash:  "hash",
		Role:          stayAuth.RoleGuest,
		TermsAccepted: true,
		OTPHash:       otpHash,
		OTPExpiresAt:  now.Add(10 * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

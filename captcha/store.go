package captcha

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreUnavailable wraps backend failures so callers can tell them apart
// from a plain "no such challenge".
var ErrStoreUnavailable = errors.New("captcha store unavailable")

// Entry is what a store keeps per challenge id.
type Entry struct {
	Text      string    `json:"text"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists challenges. Take must remove the entry and return it in
// one step: two concurrent Take calls for the same id may not both see it.
// ttl is a retention hint for stores with native expiry; ExpiresAt stays
// authoritative.
type Store interface {
	Put(ctx context.Context, id string, entry Entry, ttl time.Duration) error
	Take(ctx context.Context, id string) (Entry, bool, error)
}

// MemoryStore is a mutex-guarded map. Expired entries are swept on every
// Put and Take, so no background goroutine is needed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, entry Entry, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.entries[id] = entry
	return nil
}

func (s *MemoryStore) Take(_ context.Context, id string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	entry, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return entry, ok, nil
}

// Len reports how many challenges are currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for id, entry := range s.entries {
		if !entry.ExpiresAt.After(now) {
			delete(s.entries, id)
		}
	}
}

// Package revocation maintains a deny-list of token ids ("jti" claims)
// that must no longer be accepted, regardless of signature validity.
//
// Entries carry the token's expiry so the list can be purged once the
// token would have died anyway.
package revocation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidInput indicates a missing token id.
var ErrInvalidInput = errors.New("revocation: invalid input")

// Store is a token-id deny-list.
type Store interface {
	// Revoke marks a token id as revoked until expiresAt.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// Revoked reports whether a token id is currently revoked.
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryStore is an in-process Store. Expired entries are purged
// opportunistically on writes.
type MemoryStore struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock replaces the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory deny-list.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, id)
		}
	}
	if expiresAt.After(now) {
		s.entries[tokenID] = expiresAt
	}
	return nil
}

func (s *MemoryStore) Revoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[tokenID]
	if !ok {
		return false, nil
	}
	return exp.After(s.now()), nil
}

package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gradlink/pkg/platform/sentinel"
)

// Store persists handover token records keyed by hash.
//
// Error Contract:
// - FindByHash returns ErrNotFound for an unknown hash
// - ClaimIfUnclaimed returns ErrNotFound for an unknown hash and
//   ErrAlreadyUsed when the record was already claimed
type Store interface {
	Put(ctx context.Context, record *Record) error
	FindByHash(ctx context.Context, hash string) (*Record, error)
	ClaimIfUnclaimed(ctx context.Context, hash string, now time.Time) error
}

// InMemory keeps token records in memory for tests/dev. The claim flip is a
// check-and-set under the write lock, matching the conditional-update
// guarantee the Postgres store gets from its WHERE clause.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*Record)}
}

func (s *InMemory) Put(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.Hash] = &cp
	return nil
}

func (s *InMemory) FindByHash(_ context.Context, hash string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[hash]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) ClaimIfUnclaimed(_ context.Context, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[hash]
	if !ok {
		return fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
	}
	if r.Claimed {
		return fmt.Errorf("token already claimed: %w", sentinel.ErrAlreadyUsed)
	}
	r.Claimed = true
	r.ClaimedAt = now
	return nil
}

package audit

import (
	"context"
	"sync"
	"time"
)

// Store persists audit entries. Append is called on the hot path of every
// link attempt, so implementations must be cheap; Recent serves the admin
// view only.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// InMemory keeps entries in an append-only slice. Entries past the retention
// window are dropped lazily on read.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{now: time.Now}
}

// WithClock overrides the retention clock. Tests only.
func (s *InMemory) WithClock(now func() time.Time) *InMemory {
	s.now = now
	return s
}

func (s *InMemory) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-RetentionWindow)
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, s.entries[i])
	}
	return out, nil
}

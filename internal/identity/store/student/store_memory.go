package student

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gradlink/internal/identity/models"
	"gradlink/pkg/platform/sentinel"
)

// InMemory holds student records for tests/dev. The institution's system of
// record owns these; the store is read-mostly, with Put kept for seeding.
type InMemory struct {
	mu       sync.RWMutex
	students map[string]*models.StudentRecord
}

func NewInMemory() *InMemory {
	return &InMemory{students: make(map[string]*models.StudentRecord)}
}

// Put creates or replaces a record. Seeding only.
func (s *InMemory) Put(_ context.Context, record *models.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.students[record.UIN] = &cp
	return nil
}

func (s *InMemory) FindByUIN(_ context.Context, uin string) (*models.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.students[uin]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("student record not found: %w", sentinel.ErrNotFound)
}

// FindEligible returns every record with status STUDENT and a graduation
// date on or before today, ordered by UIN for a stable scan.
func (s *InMemory) FindEligible(_ context.Context, today time.Time) ([]models.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StudentRecord
	for _, r := range s.students {
		if r.EligibleForScan(today) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UIN < out[j].UIN })
	return out, nil
}

// FindByPersonalEmail returns a STUDENT record matching the personal email,
// regardless of graduation date. The self-service request path uses this.
func (s *InMemory) FindByPersonalEmail(_ context.Context, email string) (*models.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.students {
		if r.AccountStatus == models.StudentStatusStudent && strings.EqualFold(r.PersonalEmail, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("student record not found: %w", sentinel.ErrNotFound)
}

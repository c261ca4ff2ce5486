package account

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gradlink/internal/identity/models"
	"gradlink/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested account does not exist
// - Return ErrConflict when a uniqueness constraint (email, linked UIN)
//   would be violated
// - Return ErrInvalidState when the account is in the wrong state for the
//   operation (already linked)
// - Return nil for successful operations

// InMemory stores accounts in memory for tests/dev. The link mutation is a
// check-and-set under the write lock, matching the conditional-update
// guarantee the Postgres store gets from its WHERE clause.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// NewInMemory constructs an empty in-memory account store.
func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[string]*models.Account)}
}

func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account id taken: %w", sentinel.ErrConflict)
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return fmt.Errorf("email taken: %w", sentinel.ErrConflict)
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByLinkedUIN(_ context.Context, uin string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.LinkedUIN == uin {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

// LinkIfUnlinked performs the handover mutation as a single conditional
// write: it succeeds only while the account's linked UIN is still absent and
// the UIN is not held by any other account. Both checks and the mutation
// happen under one lock so concurrent claims cannot interleave.
func (s *InMemory) LinkIfUnlinked(_ context.Context, accountID, uin, classYear, personalEmail string, now time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if a.Linked() {
		return nil, fmt.Errorf("account already linked: %w", sentinel.ErrInvalidState)
	}
	for id, other := range s.accounts {
		if id != accountID && other.LinkedUIN == uin {
			return nil, fmt.Errorf("uin already linked: %w", sentinel.ErrConflict)
		}
	}

	a.ApplyLink(uin, classYear, personalEmail, now)
	cp := *a
	return &cp, nil
}

func (s *InMemory) UpdateProfile(_ context.Context, accountID, classYear, profileURL string, now time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if classYear != "" {
		a.ClassYear = classYear
	}
	if profileURL != "" {
		a.ProfileURL = profileURL
	}
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

//go:build integration

package account_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"gradlink/internal/identity/models"
	"gradlink/internal/identity/store/account"
	"gradlink/pkg/platform/sentinel"
	"gradlink/pkg/testutil/containers"
)

type PostgresAccountSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *account.PostgresStore
	ctx      context.Context
}

func TestPostgresAccountSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAccountSuite))
}

func (s *PostgresAccountSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = account.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresAccountSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(s.ctx, "accounts"))
}

func (s *PostgresAccountSuite) create(email string) *models.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	a := &models.Account{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      models.RoleFriend,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.Create(s.ctx, a))
	return a
}

func (s *PostgresAccountSuite) TestCreateAndFind() {
	a := s.create("alice@example.com")

	byID, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Email, byID.Email)

	byEmail, err := s.store.FindByEmail(s.ctx, "ALICE@example.com")
	s.Require().NoError(err)
	s.Equal(a.ID, byEmail.ID)

	s.Run("duplicate email conflicts", func() {
		dup := *a
		dup.ID = uuid.NewString()
		err := s.store.Create(s.ctx, &dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *PostgresAccountSuite) TestLinkIfUnlinked() {
	a := s.create("grad@example.com")

	linked, err := s.store.LinkIfUnlinked(s.ctx, a.ID, "100123456", "26", "personal@x.com", time.Now())
	s.Require().NoError(err)
	s.Equal(models.RoleFormerStudent, linked.Role)
	s.Equal("100123456", linked.LinkedUIN)

	s.Run("second link on the same account fails", func() {
		_, err := s.store.LinkIfUnlinked(s.ctx, a.ID, "100999999", "26", "", time.Now())
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("uin held by another account conflicts", func() {
		b := s.create("other@example.com")
		_, err := s.store.LinkIfUnlinked(s.ctx, b.ID, "100123456", "26", "", time.Now())
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("lookup by linked uin", func() {
		found, err := s.store.FindByLinkedUIN(s.ctx, "100123456")
		s.Require().NoError(err)
		s.Equal(a.ID, found.ID)
	})
}

func (s *PostgresAccountSuite) TestConcurrentLinkSameUIN() {
	accounts := make([]*models.Account, 10)
	for i := range accounts {
		accounts[i] = s.create(uuid.NewString() + "@example.com")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(accounts))
	for i, a := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.store.LinkIfUnlinked(s.ctx, a.ID, "100777777", "26", "", time.Now())
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	s.Equal(1, won, "unique index admits exactly one winner")
}

func (s *PostgresAccountSuite) TestUpdateProfile() {
	a := s.create("profile@example.com")

	updated, err := s.store.UpdateProfile(s.ctx, a.ID, "25", "https://example.com/p", time.Now())
	s.Require().NoError(err)
	s.Equal("25", updated.ClassYear)
	s.Equal("https://example.com/p", updated.ProfileURL)

	kept, err := s.store.UpdateProfile(s.ctx, a.ID, "", "", time.Now())
	s.Require().NoError(err)
	s.Equal("25", kept.ClassYear)
}

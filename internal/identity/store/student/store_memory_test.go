package student

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gradlink/internal/identity/models"
	"gradlink/pkg/platform/sentinel"
)

type StudentStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *StudentStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestStudentStoreSuite(t *testing.T) {
	suite.Run(t, new(StudentStoreSuite))
}

func (s *StudentStoreSuite) seed(uin, email string, gradDate time.Time, status models.StudentStatus) {
	s.Require().NoError(s.store.Put(s.ctx, &models.StudentRecord{
		UIN:           uin,
		GradDate:      gradDate,
		AccountStatus: status,
		PersonalEmail: email,
		ClassYear:     "26",
	}))
}

func (s *StudentStoreSuite) TestFindEligible() {
	today := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	s.seed("100123456", "a@x.com", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), models.StudentStatusStudent)
	s.seed("100123457", "b@x.com", time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), models.StudentStatusStudent)
	s.seed("100123458", "c@x.com", time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), models.StudentStatusGraduated)

	eligible, err := s.store.FindEligible(s.ctx, today)
	s.Require().NoError(err)
	s.Require().Len(eligible, 1)
	s.Equal("100123456", eligible[0].UIN)
}

func (s *StudentStoreSuite) TestFindByPersonalEmail() {
	s.Run("matches STUDENT records regardless of grad date", func() {
		future := time.Now().AddDate(1, 0, 0)
		s.seed("100200300", "future@x.com", future, models.StudentStatusStudent)

		found, err := s.store.FindByPersonalEmail(s.ctx, "FUTURE@x.com")
		s.Require().NoError(err)
		s.Equal("100200300", found.UIN)
	})

	s.Run("skips non-student records", func() {
		s.seed("100200301", "gone@x.com", time.Now(), models.StudentStatusWithdrawn)

		_, err := s.store.FindByPersonalEmail(s.ctx, "gone@x.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StudentStoreSuite) TestFindByUIN() {
	s.seed("100400500", "d@x.com", time.Now(), models.StudentStatusStudent)

	found, err := s.store.FindByUIN(s.ctx, "100400500")
	s.Require().NoError(err)
	s.Equal("d@x.com", found.PersonalEmail)

	_, err = s.store.FindByUIN(s.ctx, "999999999")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

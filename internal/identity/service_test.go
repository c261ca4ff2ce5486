package identity

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"gradlink/internal/identity/models"
	"gradlink/internal/identity/store/account"
	"gradlink/internal/idp/local"
	"gradlink/internal/roles"
	dErrors "gradlink/pkg/domain-errors"
)

type IdentityServiceSuite struct {
	suite.Suite
	accounts *account.InMemory
	provider *local.Provider
	service  *Service
	ctx      context.Context
}

func (s *IdentityServiceSuite) SetupTest() {
	s.accounts = account.NewInMemory()
	s.provider = local.New("test-key")
	logger := slog.New(slog.DiscardHandler)
	resolver := roles.NewEngine(roles.NewStatic("corp.com"), logger)
	s.service = NewService(s.accounts, s.provider, resolver, logger)
	s.ctx = context.Background()
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) TestRegister() {
	s.Run("partner domain overrides the former-student claim", func() {
		a, err := s.service.Register(s.ctx, "Alice@Corp.com", "longenough", true, "26")
		s.Require().NoError(err)
		s.Equal(models.RolePartner, a.Role)
		s.Equal("alice@corp.com", a.Email)
		s.Equal("26", a.ClassYear, "a declared class year survives partner resolution")
	})

	s.Run("former student keeps the class year", func() {
		a, err := s.service.Register(s.ctx, "bob@gmail.com", "longenough", true, "26")
		s.Require().NoError(err)
		s.Equal(models.RoleFormerStudent, a.Role)
		s.Equal("26", a.ClassYear)
	})

	s.Run("everyone else is a friend", func() {
		a, err := s.service.Register(s.ctx, "carol@gmail.com", "longenough", false, "")
		s.Require().NoError(err)
		s.Equal(models.RoleFriend, a.Role)
	})

	s.Run("short password is rejected before any side effect", func() {
		_, err := s.service.Register(s.ctx, "dave@gmail.com", "shortpass", false, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate email conflicts", func() {
		_, err := s.service.Register(s.ctx, "carol@gmail.com", "longenough", false, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *IdentityServiceSuite) TestSignIn() {
	_, err := s.service.Register(s.ctx, "erin@gmail.com", "longenough", false, "")
	s.Require().NoError(err)

	s.Run("valid credentials return tokens and the account", func() {
		result, err := s.service.SignIn(s.ctx, "erin@gmail.com", "longenough")
		s.Require().NoError(err)
		s.NotEmpty(result.Tokens.AccessToken)
		s.Equal("erin@gmail.com", result.Account.Email)
	})

	s.Run("bad password and unknown email share one message", func() {
		_, badPass := s.service.SignIn(s.ctx, "erin@gmail.com", "wrongwrongwrong")
		_, badEmail := s.service.SignIn(s.ctx, "ghost@gmail.com", "longenough")

		s.Require().Error(badPass)
		s.Require().Error(badEmail)
		s.Equal(dErrors.MessageOf(badPass), dErrors.MessageOf(badEmail))
		s.True(dErrors.HasCode(badPass, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestAuthorize() {
	_, err := s.service.Register(s.ctx, "frank@gmail.com", "longenough", false, "")
	s.Require().NoError(err)
	result, err := s.service.SignIn(s.ctx, "frank@gmail.com", "longenough")
	s.Require().NoError(err)

	s.Run("resolves a live token", func() {
		a, err := s.service.Authorize(s.ctx, result.Tokens.AccessToken)
		s.Require().NoError(err)
		s.Equal("frank@gmail.com", a.Email)
	})

	s.Run("rejects garbage", func() {
		_, err := s.service.Authorize(s.ctx, "garbage")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestUpdateProfile() {
	a, err := s.service.Register(s.ctx, "grace@gmail.com", "longenough", false, "")
	s.Require().NoError(err)

	updated, err := s.service.UpdateProfile(s.ctx, a.ID, "25", "https://example.com/grace")
	s.Require().NoError(err)
	s.Equal("25", updated.ClassYear)
	s.Equal("https://example.com/grace", updated.ProfileURL)

	s.Run("empty fields are preserved", func() {
		again, err := s.service.UpdateProfile(s.ctx, a.ID, "", "")
		s.Require().NoError(err)
		s.Equal("25", again.ClassYear)
		s.Equal("https://example.com/grace", again.ProfileURL)
	})

	s.Run("unknown account is not found", func() {
		_, err := s.service.UpdateProfile(s.ctx, "missing", "25", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

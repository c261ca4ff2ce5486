package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"gradlink/internal/identity/models"
	dErrors "gradlink/pkg/domain-errors"
)

type failingDirectory struct{}

func (failingDirectory) PartnerDomains(context.Context) ([]string, error) {
	return nil, errors.New("directory down")
}

type RoleEngineSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *RoleEngineSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestRoleEngineSuite(t *testing.T) {
	suite.Run(t, new(RoleEngineSuite))
}

func (s *RoleEngineSuite) newEngine(dir Directory) *Engine {
	return NewEngine(dir, slog.New(slog.DiscardHandler))
}

func (s *RoleEngineSuite) TestResolve() {
	engine := s.newEngine(NewStatic("corp.com"))

	s.Run("partner domain wins over a former-student claim", func() {
		role, year, err := engine.Resolve(s.ctx, "alice@corp.com", true, "26")
		s.Require().NoError(err)
		s.Equal(models.RolePartner, role)
		s.Equal("26", year, "a declared class year stays on the partner account")
	})

	s.Run("partner without a class year records none", func() {
		role, year, err := engine.Resolve(s.ctx, "alice@corp.com", false, "  ")
		s.Require().NoError(err)
		s.Equal(models.RolePartner, role)
		s.Empty(year)
	})

	s.Run("former-student claim requires a class year", func() {
		_, _, err := engine.Resolve(s.ctx, "bob@gmail.com", true, "  ")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("former-student claim with class year", func() {
		role, year, err := engine.Resolve(s.ctx, "bob@gmail.com", true, " 26 ")
		s.Require().NoError(err)
		s.Equal(models.RoleFormerStudent, role)
		s.Equal("26", year)
	})

	s.Run("everyone else is a friend", func() {
		role, year, err := engine.Resolve(s.ctx, "carol@gmail.com", false, "26")
		s.Require().NoError(err)
		s.Equal(models.RoleFriend, role)
		s.Empty(year)
	})

	s.Run("rejects malformed email", func() {
		_, _, err := engine.Resolve(s.ctx, "not-an-email", false, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RoleEngineSuite) TestResolveFailsOpen() {
	engine := s.newEngine(failingDirectory{})

	s.Run("fallback set classifies known dev partners", func() {
		role, _, err := engine.Resolve(s.ctx, "dev@acme.com", false, "")
		s.Require().NoError(err)
		s.Equal(models.RolePartner, role)
	})

	s.Run("unknown domains still resolve", func() {
		role, _, err := engine.Resolve(s.ctx, "dev@gmail.com", false, "")
		s.Require().NoError(err)
		s.Equal(models.RoleFriend, role)
	})
}

func (s *RoleEngineSuite) TestHTTPDirectory() {
	s.Run("accepts a bare array payload", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/domains", r.URL.Path)
			w.Write([]byte(`["Corp.com", " partner.io "]`))
		}))
		defer srv.Close()

		domains, err := NewHTTPDirectory(srv.URL).PartnerDomains(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"corp.com", "partner.io"}, domains)
	})

	s.Run("accepts a wrapped payload", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"domains": ["corp.com"]}`))
		}))
		defer srv.Close()

		domains, err := NewHTTPDirectory(srv.URL).PartnerDomains(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"corp.com"}, domains)
	})

	s.Run("non-200 is an error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPDirectory(srv.URL).PartnerDomains(s.ctx)
		s.Require().Error(err)
	})
}

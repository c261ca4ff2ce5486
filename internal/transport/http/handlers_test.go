package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gradlink/internal/handover/audit"
	"gradlink/internal/handover/link"
	"gradlink/internal/handover/token"
	"gradlink/internal/identity"
	"gradlink/internal/identity/models"
	"gradlink/internal/identity/store/account"
	"gradlink/internal/identity/store/student"
	"gradlink/internal/idp/local"
	"gradlink/internal/roles"
)

type HandlersSuite struct {
	suite.Suite
	server   *httptest.Server
	students *student.InMemory
	tokens   *token.Service
	adminIDs map[string]bool
	ctx      context.Context
}

func (s *HandlersSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	accounts := account.NewInMemory()
	s.students = student.NewInMemory()
	provider := local.New("test-key")
	s.adminIDs = make(map[string]bool)

	resolver := roles.NewEngine(roles.NewStatic("corp.com"), logger)
	identitySvc := identity.NewService(accounts, provider, resolver, logger)
	s.tokens = token.NewService(token.NewInMemory(), s.students, nil, "https://alumni.example.edu", nil, logger)
	recorder := audit.NewRecorder(audit.NewInMemory(), nil, logger)
	engine := link.NewEngine(accounts, s.students, s.tokens, provider, recorder, nil, nil, logger)

	router := NewRouter(logger,
		NewIdentityHandler(identitySvc, identitySvc, logger),
		NewHandoverHandler(engine, s.tokens, recorder, identitySvc,
			func(id string) bool { return s.adminIDs[id] }, logger),
	)
	s.server = httptest.NewServer(router)
	s.ctx = context.Background()
}

func (s *HandlersSuite) TearDownTest() {
	s.server.Close()
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) do(method, path, bearer string, body any) (*http.Response, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (s *HandlersSuite) signup(email string) map[string]any {
	resp, body := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"email": email, "password": "longenough",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return body
}

func (s *HandlersSuite) signin(email string) string {
	resp, body := s.do(http.MethodPost, "/auth/signin", "", map[string]any{
		"email": email, "password": "longenough",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	tokens := body["tokens"].(map[string]any)
	return tokens["AccessToken"].(string)
}

func (s *HandlersSuite) seedStudent(uin, email string) {
	s.Require().NoError(s.students.Put(s.ctx, &models.StudentRecord{
		UIN:           uin,
		GradDate:      time.Now().AddDate(0, 0, -7),
		AccountStatus: models.StudentStatusStudent,
		PersonalEmail: email,
		ClassYear:     "26",
	}))
}

func (s *HandlersSuite) TestSignupAndMe() {
	s.signup("alice@gmail.com")
	bearer := s.signin("alice@gmail.com")

	resp, body := s.do(http.MethodGet, "/me", bearer, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("alice@gmail.com", body["email"])
	s.Equal("FRIEND", body["role"])

	s.Run("duplicate signup conflicts", func() {
		resp, body := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
			"email": "alice@gmail.com", "password": "longenough",
		})
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("conflict", body["error"])
	})

	s.Run("me without a token is unauthorized", func() {
		resp, _ := s.do(http.MethodGet, "/me", "", nil)
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func (s *HandlersSuite) TestUpdateProfile() {
	s.signup("bob@gmail.com")
	bearer := s.signin("bob@gmail.com")

	resp, body := s.do(http.MethodPatch, "/me", bearer, map[string]any{
		"class_year": "25", "profile_url": "https://example.com/bob",
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("25", body["class_year"])
}

func (s *HandlersSuite) TestHandoverFlow() {
	s.seedStudent("100123456", "grad@x.com")
	s.signup("grad-account@gmail.com")
	bearer := s.signin("grad-account@gmail.com")

	s.Run("lookup previews without the personal email", func() {
		resp, body := s.do(http.MethodPost, "/graduation-handover/lookup", bearer,
			map[string]any{"uin": "100123456"})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("100123456", body["uin"])
		s.NotContains(body, "personal_email")
	})

	s.Run("malformed uin is a validation error", func() {
		resp, _ := s.do(http.MethodPost, "/graduation-handover/lookup", bearer,
			map[string]any{"uin": "12345"})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("link upgrades the account", func() {
		resp, body := s.do(http.MethodPost, "/graduation-handover", bearer,
			map[string]any{"uin": "100123456", "class_year": "26", "personal_email": "grad@x.com"})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("FORMER_STUDENT", body["role"])
		s.Equal("100123456", body["linked_uin"])
	})

	s.Run("second link conflicts", func() {
		resp, _ := s.do(http.MethodPost, "/graduation-handover", bearer,
			map[string]any{"uin": "100123456"})
		s.Equal(http.StatusConflict, resp.StatusCode)
	})
}

func (s *HandlersSuite) TestSelfServiceClaim() {
	s.seedStudent("100777000", "selfserve@x.com")

	resp, body := s.do(http.MethodPost, "/handover/request-link", "",
		map[string]any{"email": "selfserve@x.com"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	magicLink, _ := body["magic_link"].(string)
	s.Require().NotEmpty(magicLink, "no channel configured, link comes back directly")

	const prefix = "https://alumni.example.edu/#claim?token="
	s.Require().True(len(magicLink) > len(prefix))
	raw := magicLink[len(prefix):]

	resp, body = s.do(http.MethodPost, "/handover/claim", "",
		map[string]any{"token": raw, "password": "longenough"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["new_account"])

	s.Run("replayed token is rejected", func() {
		resp, _ := s.do(http.MethodPost, "/handover/claim", "",
			map[string]any{"token": raw, "password": "longenough"})
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("unknown email stays enumeration safe", func() {
		resp, body := s.do(http.MethodPost, "/handover/request-link", "",
			map[string]any{"email": "nobody@x.com"})
		s.Equal(http.StatusNotFound, resp.StatusCode)
		s.Equal("no pending handover for that address", body["error_description"])
	})
}

func (s *HandlersSuite) TestAdminSurface() {
	admin := s.signup("admin@gmail.com")
	s.adminIDs[admin["id"].(string)] = true
	adminBearer := s.signin("admin@gmail.com")

	s.signup("pleb@gmail.com")
	plebBearer := s.signin("pleb@gmail.com")

	s.seedStudent("100123456", "scanme@x.com")

	s.Run("non-admin is forbidden", func() {
		resp, _ := s.do(http.MethodPost, "/admin/handover/scan", plebBearer, nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("scan reports progress", func() {
		resp, body := s.do(http.MethodPost, "/admin/handover/scan", adminBearer, nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(float64(1), body["eligible"])
		s.Equal(float64(1), body["processed"])
	})

	s.Run("audit log rejects a silly limit", func() {
		resp, _ := s.do(http.MethodGet, "/admin/handover/log?limit=5000", adminBearer, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("audit log lists entries", func() {
		resp, body := s.do(http.MethodGet, fmt.Sprintf("/admin/handover/log?limit=%d", 10), adminBearer, nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		_, ok := body["entries"]
		s.True(ok)
	})
}

func (s *HandlersSuite) TestHealthz() {
	resp, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
}

package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gradlink/internal/identity"
	"gradlink/internal/identity/models"
	"gradlink/internal/platform/middleware"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/httputil"
	"gradlink/pkg/requestcontext"
)

// IdentityService defines the account operations the handler delegates to.
type IdentityService interface {
	Register(ctx context.Context, email, password string, formerStudent bool, classYear string) (*models.Account, error)
	SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error)
	Me(ctx context.Context, accountID string) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountID, classYear, profileURL string) (*models.Account, error)
}

// IdentityHandler serves signup, signin, and profile endpoints.
type IdentityHandler struct {
	service    IdentityService
	authorizer middleware.Authorizer
	logger     *slog.Logger
}

func NewIdentityHandler(service IdentityService, authorizer middleware.Authorizer, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{service: service, authorizer: authorizer, logger: logger}
}

// Register mounts the identity routes.
func (h *IdentityHandler) Register(r chi.Router) {
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/signin", h.handleSignin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.authorizer, h.logger))
		r.Get("/me", h.handleMe)
		r.Patch("/me", h.handleUpdateProfile)
	})
}

type signupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FormerStudent bool   `json:"former_student"`
	ClassYear     string `json:"class_year"`
}

func (h *IdentityHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	account, err := h.service.Register(ctx, req.Email, req.Password, req.FormerStudent, req.ClassYear)
	if err != nil {
		h.logger.WarnContext(ctx, "signup rejected",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *IdentityHandler) handleSignin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "signin rejected",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *IdentityHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.service.Me(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type updateProfileRequest struct {
	ClassYear  string `json:"class_year"`
	ProfileURL string `json:"profile_url"`
}

func (h *IdentityHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	account, err := h.service.UpdateProfile(ctx, requestcontext.AccountID(ctx), req.ClassYear, req.ProfileURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

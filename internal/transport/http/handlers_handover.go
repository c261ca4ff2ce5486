package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gradlink/internal/handover/audit"
	"gradlink/internal/handover/link"
	"gradlink/internal/handover/token"
	"gradlink/internal/identity/models"
	"gradlink/internal/platform/middleware"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/httputil"
	"gradlink/pkg/requestcontext"
)

const defaultAuditLimit = 50

// LinkService defines the linking-engine operations the handler delegates to.
type LinkService interface {
	Link(ctx context.Context, accountID, uin, classYear, personalEmail string) (*models.Account, error)
	LookupStudent(ctx context.Context, accountID, uin string) (*models.StudentPreview, error)
	ClaimByToken(ctx context.Context, rawToken, password string) (*link.ClaimResult, error)
}

// TokenService defines the token operations the handler delegates to.
type TokenService interface {
	ScanEligible(ctx context.Context) (token.ScanReport, error)
	RequestByEmail(ctx context.Context, email string) (token.RequestResult, error)
}

// AuditReader serves the admin audit view.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// HandoverHandler serves the graduation-handover surface.
type HandoverHandler struct {
	links      LinkService
	tokens     TokenService
	auditLog   AuditReader
	authorizer middleware.Authorizer
	isAdmin    func(accountID string) bool
	logger     *slog.Logger
}

func NewHandoverHandler(links LinkService, tokens TokenService, auditLog AuditReader, authorizer middleware.Authorizer, isAdmin func(string) bool, logger *slog.Logger) *HandoverHandler {
	return &HandoverHandler{
		links:      links,
		tokens:     tokens,
		auditLog:   auditLog,
		authorizer: authorizer,
		isAdmin:    isAdmin,
		logger:     logger,
	}
}

// Register mounts the handover routes. The claim and request-link paths are
// public: their callers hold a magic link, not a session.
func (h *HandoverHandler) Register(r chi.Router) {
	r.Post("/handover/request-link", h.handleRequestLink)
	r.Post("/handover/claim", h.handleClaim)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.authorizer, h.logger))
		r.Post("/graduation-handover", h.handleLink)
		r.Post("/graduation-handover/lookup", h.handleLookup)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.isAdmin, h.logger))
			r.Post("/admin/handover/scan", h.handleScan)
			r.Get("/admin/handover/log", h.handleAuditLog)
		})
	})
}

type linkRequest struct {
	UIN           string `json:"uin"`
	ClassYear     string `json:"class_year"`
	PersonalEmail string `json:"personal_email"`
}

func (h *HandoverHandler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	account, err := h.links.Link(ctx, requestcontext.AccountID(ctx), req.UIN, req.ClassYear, req.PersonalEmail)
	if err != nil {
		h.logger.WarnContext(ctx, "handover link rejected",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type lookupRequest struct {
	UIN string `json:"uin"`
}

func (h *HandoverHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	preview, err := h.links.LookupStudent(ctx, requestcontext.AccountID(ctx), req.UIN)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}

type requestLinkRequest struct {
	Email string `json:"email"`
}

func (h *HandoverHandler) handleRequestLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.tokens.RequestByEmail(ctx, req.Email)
	if err != nil {
		h.logger.WarnContext(ctx, "magic link request rejected",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type claimRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *HandoverHandler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.links.ClaimByToken(ctx, req.Token, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "token claim rejected",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *HandoverHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.tokens.ScanEligible(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "eligibility scan failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *HandoverHandler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	entries, err := h.auditLog.Recent(ctx, limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load audit log"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

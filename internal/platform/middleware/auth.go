package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gradlink/internal/identity/models"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/httputil"
	"gradlink/pkg/requestcontext"
)

// Authorizer resolves a bearer token to an account.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*models.Account, error)
}

type contextKeyAccount struct{}

// GetAccount retrieves the authenticated account from the context. Only set
// behind RequireAuth.
func GetAccount(ctx context.Context) *models.Account {
	if a, ok := ctx.Value(contextKeyAccount{}).(*models.Account); ok {
		return a
	}
	return nil
}

// WithAccount injects an account into a context. Handler tests only.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	ctx = context.WithValue(ctx, contextKeyAccount{}, account)
	return requestcontext.WithAccountID(ctx, account.ID)
}

// RequireAuth gates a route on a valid bearer token and stores the resolved
// account on the context.
func RequireAuth(authorizer Authorizer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access, missing bearer token",
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			account, err := authorizer.Authorize(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(ctx, account)))
		})
	}
}

// RequireAdmin gates a route on the configured admin allowlist. Must run
// behind RequireAuth.
func RequireAdmin(isAdmin func(accountID string) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			account := GetAccount(ctx)
			if account == nil || !isAdmin(account.ID) {
				logger.WarnContext(ctx, "forbidden admin access",
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package identity owns the account lifecycle outside the handover: signup
// with role classification, sign-in, and profile maintenance.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gradlink/internal/identity/models"
	"gradlink/internal/idp"
	"gradlink/internal/roles"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/sentinel"
	"gradlink/pkg/validation"
)

// AccountStore is the slice of the account store the service needs.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountID, classYear, profileURL string, now time.Time) (*models.Account, error)
}

// SignInResult bundles the provider tokens with the account projection.
type SignInResult struct {
	Tokens  idp.Tokens      `json:"tokens"`
	Account *models.Account `json:"account"`
}

// Service implements registration and session concerns against the identity
// provider and the account store.
type Service struct {
	accounts AccountStore
	provider idp.Provider
	resolver *roles.Engine
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(accounts AccountStore, provider idp.Provider, resolver *roles.Engine, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		provider: provider,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates the provider identity and the account record. The role is
// resolved server-side; the former-student claim only steers classification,
// it grants nothing until the handover completes.
func (s *Service) Register(ctx context.Context, email, password string, formerStudent bool, classYear string) (*models.Account, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	role, year, err := s.resolver.Resolve(ctx, normalized, formerStudent, classYear)
	if err != nil {
		return nil, err
	}

	identityID, err := s.provider.Register(ctx, normalized, password)
	if errors.Is(err, idp.ErrDuplicateIdentity) {
		return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "register identity")
	}
	if err := s.provider.Confirm(ctx, normalized); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "confirm identity")
	}
	if err := s.provider.SetAttributes(ctx, normalized, role.String(), year, ""); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "set identity attributes")
	}

	now := s.now()
	account := &models.Account{
		ID:        identityID,
		Email:     normalized,
		Role:      role,
		ClassYear: year,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create account")
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "role", account.Role)
	return account, nil
}

// SignIn exchanges credentials for tokens. The error message never reveals
// whether the email or the password was wrong.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	tokens, err := s.provider.Authenticate(ctx, normalized, password)
	if errors.Is(err, idp.ErrInvalidCredentials) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "authenticate")
	}

	account, err := s.accounts.FindByEmail(ctx, normalized)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return &SignInResult{Tokens: tokens, Account: account}, nil
}

// Authorize resolves a bearer token to the local account.
func (s *Service) Authorize(ctx context.Context, accessToken string) (*models.Account, error) {
	attrs, err := s.provider.GetByToken(ctx, accessToken)
	if errors.Is(err, idp.ErrInvalidToken) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "resolve token")
	}

	account, err := s.accounts.FindByEmail(ctx, attrs.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return account, nil
}

// Me returns the account by ID.
func (s *Service) Me(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return account, nil
}

// UpdateProfile sets the mutable profile fields. Empty fields are left as
// they are.
func (s *Service) UpdateProfile(ctx context.Context, accountID, classYear, profileURL string) (*models.Account, error) {
	account, err := s.accounts.UpdateProfile(ctx, accountID,
		validation.NormalizeClassYear(classYear), profileURL, s.now())
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update profile")
	}
	return account, nil
}

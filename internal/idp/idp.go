// Package idp defines the identity-provider boundary. The provider owns
// credentials and token issuance; this service only mirrors role attributes
// into it so downstream authorization tokens reflect role changes without a
// re-authentication workaround.
package idp

import (
	"context"
	"errors"
)

// Distinguishable provider failures. Everything else is treated as an
// upstream fault.
var (
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Tokens is the credential bundle returned by a successful sign-in.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Attributes are the provider-side mirror of an account's authorization
// surface.
type Attributes struct {
	Identity  string // provider-issued id (subject)
	Email     string
	Role      string
	ClassYear string
	LinkedUIN string
}

// Provider is the external identity provider contract.
type Provider interface {
	// Register creates an identity and returns the provider-issued id.
	// Returns ErrDuplicateIdentity when the email is taken.
	Register(ctx context.Context, email, password string) (string, error)
	// Confirm marks the identity as verified so it can sign in without a
	// separate email-verification step.
	Confirm(ctx context.Context, email string) error
	// SetAttributes mirrors role, class year, and linked UIN onto the
	// identity. Empty strings clear nothing; they are skipped.
	SetAttributes(ctx context.Context, email, role, classYear, linkedUIN string) error
	// Authenticate exchanges credentials for tokens. Returns
	// ErrInvalidCredentials for a bad email or password, without
	// distinguishing which.
	Authenticate(ctx context.Context, email, password string) (Tokens, error)
	// GetByToken resolves an access token to the identity's attributes.
	// Returns ErrInvalidToken for unknown, malformed, or expired tokens.
	GetByToken(ctx context.Context, accessToken string) (Attributes, error)
}

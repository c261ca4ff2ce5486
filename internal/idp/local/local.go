// Package local implements idp.Provider in-process for development and
// tests: bcrypt password hashes, HS256 access tokens, attributes in memory.
// Production deployments point the service at a hosted provider instead.
package local

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gradlink/internal/idp"
)

const tokenTTL = time.Hour

type identity struct {
	id           string
	email        string
	passwordHash []byte
	confirmed    bool
	role         string
	classYear    string
	linkedUIN    string
}

// Provider is the in-memory identity provider.
type Provider struct {
	mu         sync.RWMutex
	signingKey []byte
	byEmail    map[string]*identity
	now        func() time.Time
}

// New constructs a local provider signing tokens with the given key.
func New(signingKey string) *Provider {
	return &Provider{
		signingKey: []byte(signingKey),
		byEmail:    make(map[string]*identity),
		now:        time.Now,
	}
}

// WithClock overrides the token clock. Tests only.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) Register(_ context.Context, email, password string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[key]; ok {
		return "", idp.ErrDuplicateIdentity
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	ident := &identity{
		id:           uuid.NewString(),
		email:        key,
		passwordHash: hash,
	}
	p.byEmail[key] = ident
	return ident.id, nil
}

func (p *Provider) Confirm(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ident, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return idp.ErrInvalidCredentials
	}
	ident.confirmed = true
	return nil
}

func (p *Provider) SetAttributes(_ context.Context, email, role, classYear, linkedUIN string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ident, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return idp.ErrInvalidCredentials
	}
	if role != "" {
		ident.role = role
	}
	if classYear != "" {
		ident.classYear = classYear
	}
	if linkedUIN != "" {
		ident.linkedUIN = linkedUIN
	}
	return nil
}

func (p *Provider) Authenticate(_ context.Context, email, password string) (idp.Tokens, error) {
	p.mu.RLock()
	ident, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	p.mu.RUnlock()
	if !ok || !ident.confirmed {
		return idp.Tokens{}, idp.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(ident.passwordHash, []byte(password)); err != nil {
		return idp.Tokens{}, idp.ErrInvalidCredentials
	}

	now := p.now()
	claims := jwt.MapClaims{
		"sub":   ident.id,
		"email": ident.email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return idp.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return idp.Tokens{
		AccessToken: signed,
		ExpiresIn:   int64(tokenTTL.Seconds()),
	}, nil
}

func (p *Provider) GetByToken(_ context.Context, accessToken string) (idp.Attributes, error) {
	parsed, err := jwt.Parse(accessToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.signingKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return idp.Attributes{}, idp.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return idp.Attributes{}, idp.ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	p.mu.RLock()
	defer p.mu.RUnlock()
	ident, ok := p.byEmail[email]
	if !ok {
		return idp.Attributes{}, idp.ErrInvalidToken
	}
	return idp.Attributes{
		Identity:  ident.id,
		Email:     ident.email,
		Role:      ident.role,
		ClassYear: ident.classYear,
		LinkedUIN: ident.linkedUIN,
	}, nil
}

// Package link implements the graduation handover: the one-time migration of
// a student record onto a durable external account. The engine owns the
// precondition checks, the conditional write, and the attribute mirror into
// the identity provider.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gradlink/internal/delivery"
	"gradlink/internal/handover/audit"
	"gradlink/internal/handover/metrics"
	"gradlink/internal/handover/token"
	"gradlink/internal/identity/models"
	"gradlink/internal/idp"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/email"
	"gradlink/pkg/platform/sentinel"
	"gradlink/pkg/validation"
)

// AccountStore is the slice of the account store the engine needs.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByLinkedUIN(ctx context.Context, uin string) (*models.Account, error)
	LinkIfUnlinked(ctx context.Context, accountID, uin, classYear, personalEmail string, now time.Time) (*models.Account, error)
}

// StudentReader resolves institutional records by UIN.
type StudentReader interface {
	FindByUIN(ctx context.Context, uin string) (*models.StudentRecord, error)
}

// ClaimResult is returned by a successful token claim.
type ClaimResult struct {
	Account    *models.Account `json:"account"`
	NewAccount bool            `json:"new_account"`
}

// Engine coordinates the handover link across the account store, the student
// directory, the identity provider, and the audit trail.
type Engine struct {
	accounts AccountStore
	students StudentReader
	tokens   *token.Service
	provider idp.Provider
	recorder *audit.Recorder
	channel  delivery.Channel
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewEngine(accounts AccountStore, students StudentReader, tokens *token.Service, provider idp.Provider, recorder *audit.Recorder, channel delivery.Channel, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		accounts: accounts,
		students: students,
		tokens:   tokens,
		provider: provider,
		recorder: recorder,
		channel:  channel,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("gradlink/handover"),
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Link attaches the student record identified by uin to the account.
//
// Preconditions run in a fixed order so callers see stable error codes:
// account exists, account not already linked, UIN not held by another
// account, UIN well formed, personal email matches the record on file. The
// mutation itself is the store's conditional write, so two concurrent link
// attempts for the same UIN resolve to exactly one winner regardless of how
// the precondition reads interleaved.
func (e *Engine) Link(ctx context.Context, accountID, uin, classYear, personalEmail string) (*models.Account, error) {
	ctx, span := e.tracer.Start(ctx, "handover.link",
		trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	handoverID := e.recorder.Begin(ctx, accountID, uin, personalEmail)

	account, err := e.link(ctx, accountID, uin, classYear, personalEmail)
	if err != nil {
		e.recorder.Fail(ctx, handoverID, accountID, uin, dErrors.MessageOf(err))
		e.metrics.IncrementLinkOutcome(outcomeLabel(err))
		return nil, err
	}

	e.recorder.Complete(ctx, handoverID, accountID, uin)
	e.metrics.IncrementLinkOutcome("success")
	e.logger.InfoContext(ctx, "handover link complete", "account_id", accountID)
	return account, nil
}

func (e *Engine) link(ctx context.Context, accountID, uin, classYear, personalEmail string) (*models.Account, error) {
	account, err := e.accounts.FindByID(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if account.Linked() {
		return nil, dErrors.New(dErrors.CodeConflict, "account is already linked to a student record")
	}

	uin = strings.TrimSpace(uin)
	if _, err := e.accounts.FindByLinkedUIN(ctx, uin); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "student record is already linked to another account")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check uin linkage")
	}

	if _, err := validation.ValidateUIN(uin); err != nil {
		return nil, err
	}

	personalEmail, err = e.crossCheckEmail(ctx, uin, personalEmail)
	if err != nil {
		return nil, err
	}

	classYear = validation.NormalizeClassYear(classYear)
	linked, err := e.accounts.LinkIfUnlinked(ctx, accountID, uin, classYear, personalEmail, e.now())
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil, dErrors.New(dErrors.CodeConflict, "account is already linked to a student record")
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.New(dErrors.CodeConflict, "student record is already linked to another account")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "link account")
	}

	// The durable write holds even if the mirror fails; the provider catches
	// up on the next attribute sync, and the attempt still counts as linked.
	// A retry after failing here would only hit the already-linked conflict.
	if err := e.provider.SetAttributes(ctx, linked.Email, linked.Role.String(), linked.ClassYear, linked.LinkedUIN); err != nil {
		e.logger.WarnContext(ctx, "identity provider attribute mirror failed",
			"account_id", accountID, "error", err)
	}
	return linked, nil
}

// crossCheckEmail verifies the supplied personal email against the student
// record. A record without an email on file accepts the supplied one
// (first write wins); a mismatch is rejected without revealing the stored
// address.
func (e *Engine) crossCheckEmail(ctx context.Context, uin, supplied string) (string, error) {
	record, err := e.students.FindByUIN(ctx, uin)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "student record not found")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load student record")
	}

	normalized, ok := validation.NormalizeEmail(supplied)
	if supplied != "" && !ok {
		return "", dErrors.New(dErrors.CodeValidation, "invalid personal email")
	}

	onFile, hasOnFile := validation.NormalizeEmail(record.PersonalEmail)
	if !hasOnFile {
		return normalized, nil
	}
	if normalized != "" && normalized != onFile {
		return "", dErrors.New(dErrors.CodeValidation, "personal email does not match the record on file")
	}
	return onFile, nil
}

// LookupStudent is the redacted pre-link preview. The UIN must be in the
// institution's exact 9-digit format before any store is consulted, and both
// conflict rules are re-checked so the caller learns nothing about records
// they could not link anyway.
func (e *Engine) LookupStudent(ctx context.Context, accountID, uin string) (*models.StudentPreview, error) {
	uin = strings.TrimSpace(uin)
	if err := validation.ExactUIN(uin); err != nil {
		return nil, err
	}

	account, err := e.accounts.FindByID(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if account.Linked() {
		return nil, dErrors.New(dErrors.CodeConflict, "account is already linked to a student record")
	}
	if _, err := e.accounts.FindByLinkedUIN(ctx, uin); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "student record is already linked to another account")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check uin linkage")
	}

	record, err := e.students.FindByUIN(ctx, uin)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "student record not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load student record")
	}

	return &models.StudentPreview{
		UIN:           record.UIN,
		GradDate:      record.GradDate,
		AccountStatus: record.AccountStatus,
		ClassYear:     record.ClassYear,
	}, nil
}

// ClaimByToken redeems a magic-link token. An account is looked up by the
// token's personal email and provisioned as FRIEND when absent, then linked.
// The token is retired only after the link succeeds, so a failed claim can
// be retried with the same link.
func (e *Engine) ClaimByToken(ctx context.Context, rawToken, password string) (*ClaimResult, error) {
	ctx, span := e.tracer.Start(ctx, "handover.claim")
	defer span.End()

	info, err := e.tokens.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	account, created, err := e.findOrProvision(ctx, info, password)
	if err != nil {
		return nil, err
	}

	linked, err := e.Link(ctx, account.ID, info.UIN, info.ClassYear, info.PersonalEmail)
	if err != nil {
		return nil, err
	}

	if err := e.tokens.MarkClaimed(ctx, rawToken); err != nil {
		// The link already holds; a racing claim retired the token first.
		e.logger.WarnContext(ctx, "token claim race after link", "account_id", account.ID, "error", err)
	}

	e.sendConfirmation(ctx, linked)
	return &ClaimResult{Account: linked, NewAccount: created}, nil
}

func (e *Engine) findOrProvision(ctx context.Context, info token.Info, password string) (*models.Account, bool, error) {
	account, err := e.accounts.FindByEmail(ctx, info.PersonalEmail)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "look up account")
	}

	if err := validation.ValidatePassword(password); err != nil {
		return nil, false, err
	}

	identityID, err := e.provider.Register(ctx, info.PersonalEmail, password)
	if errors.Is(err, idp.ErrDuplicateIdentity) {
		return nil, false, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUpstream, "register identity")
	}
	if err := e.provider.Confirm(ctx, info.PersonalEmail); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUpstream, "confirm identity")
	}

	now := e.now()
	account = &models.Account{
		ID:        identityID,
		Email:     info.PersonalEmail,
		Role:      models.RoleFriend,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "create account")
	}
	return account, true, nil
}

func (e *Engine) sendConfirmation(ctx context.Context, account *models.Account) {
	if e.channel == nil {
		return
	}
	first, _ := email.DeriveNameFromEmail(account.Email)
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your graduate account is ready.\n\n"+
			"Class year: %s\n\n"+
			"You can sign in with this email address from now on.",
		first, account.ClassYear)
	if err := e.channel.Send(ctx, account.Email, "Your graduate account is ready", body); err != nil {
		e.logger.WarnContext(ctx, "confirmation email failed", "account_id", account.ID, "error", err)
	}
}

func outcomeLabel(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return "conflict"
	case dErrors.HasCode(err, dErrors.CodeValidation), dErrors.HasCode(err, dErrors.CodeNotFound):
		return "validation"
	default:
		return "error"
	}
}

// Package token mints, delivers, and validates the single-use handover
// tokens that carry a graduating student into the claim flow.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gradlink/internal/delivery"
	"gradlink/internal/handover/metrics"
	"gradlink/internal/identity/models"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/sentinel"
	"gradlink/pkg/validation"
)

// deliveryConcurrency bounds parallel sends during a scan.
const deliveryConcurrency = 8

const rawTokenBytes = 32

// StudentDirectory is the slice of the student store the token service reads.
type StudentDirectory interface {
	FindEligible(ctx context.Context, today time.Time) ([]models.StudentRecord, error)
	FindByPersonalEmail(ctx context.Context, email string) (*models.StudentRecord, error)
}

// ScanReport summarizes one eligibility scan. Errors holds one message per
// record that failed; a failed record never aborts the batch.
type ScanReport struct {
	Eligible  int      `json:"eligible"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors,omitempty"`
}

// RequestResult is the outcome of a self-service link request. MagicLink is
// populated only when no delivery channel is configured.
type RequestResult struct {
	Delivered bool   `json:"delivered"`
	MagicLink string `json:"magic_link,omitempty"`
}

// Service owns the token lifecycle: mint, deliver, validate, claim.
type Service struct {
	store    Store
	students StudentDirectory
	channel  delivery.Channel
	baseURL  string
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, students StudentDirectory, channel delivery.Channel, frontendBaseURL string, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		students: students,
		channel:  channel,
		baseURL:  frontendBaseURL,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Mint generates a fresh raw token for the student and persists its hash.
// The raw value is returned once and never stored or logged.
func (s *Service) Mint(ctx context.Context, student *models.StudentRecord) (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate token")
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now()
	record := &Record{
		Hash:          hashToken(raw),
		UIN:           student.UIN,
		PersonalEmail: student.PersonalEmail,
		ClassYear:     student.ClassYear,
		IssuedAt:      now,
		ExpiresAt:     now.Add(TokenTTL),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist token")
	}
	return raw, nil
}

// MagicLink renders the claim URL for a raw token.
func (s *Service) MagicLink(raw string) string {
	return fmt.Sprintf("%s/#claim?token=%s", s.baseURL, raw)
}

// ScanEligible mints and delivers a token for every eligible student record.
// Individual failures are collected into the report; the batch always runs to
// completion. Deliveries run in parallel with a fixed bound.
func (s *Service) ScanEligible(ctx context.Context) (ScanReport, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveScanLatency(time.Since(start))
	}()

	eligible, err := s.students.FindEligible(ctx, start)
	if err != nil {
		return ScanReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "scan eligible students")
	}

	report := ScanReport{Eligible: len(eligible)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deliveryConcurrency)

	for i := range eligible {
		student := eligible[i]
		g.Go(func() error {
			if err := s.mintAndDeliver(gctx, &student, "scan"); err != nil {
				mu.Lock()
				report.Errors = append(report.Errors, fmt.Sprintf("uin %s: %v", student.UIN, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Processed++
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	if err := g.Wait(); err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "scan interrupted")
	}

	s.logger.InfoContext(ctx, "eligibility scan complete",
		"eligible", report.Eligible, "processed", report.Processed, "failed", len(report.Errors))
	return report, nil
}

// RequestByEmail is the self-service path: a graduate asks for a fresh magic
// link at their personal email. Graduation date is not re-checked here; the
// record's presence with STUDENT status is the gate.
func (s *Service) RequestByEmail(ctx context.Context, email string) (RequestResult, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return RequestResult{}, dErrors.New(dErrors.CodeValidation, "invalid email address")
	}

	student, err := s.students.FindByPersonalEmail(ctx, normalized)
	if errors.Is(err, sentinel.ErrNotFound) {
		return RequestResult{}, dErrors.New(dErrors.CodeNotFound, "no pending handover for that address")
	}
	if err != nil {
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up student record")
	}

	raw, err := s.Mint(ctx, student)
	if err != nil {
		return RequestResult{}, err
	}
	s.metrics.IncrementTokensIssued("self_service")

	if s.channel == nil {
		s.metrics.IncrementDelivery("skipped")
		return RequestResult{MagicLink: s.MagicLink(raw)}, nil
	}

	if err := s.channel.Send(ctx, student.PersonalEmail,
		"Claim your graduate account", s.claimEmailBody(raw)); err != nil {
		s.metrics.IncrementDelivery("failed")
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeUpstream, "deliver magic link")
	}
	s.metrics.IncrementDelivery("sent")
	return RequestResult{Delivered: true}, nil
}

// Validate resolves a raw token to its claim payload. Unknown, claimed, and
// expired tokens all collapse to the same NotFound so callers cannot probe
// token state. Validate never mutates the record.
func (s *Service) Validate(ctx context.Context, raw string) (Info, error) {
	record, err := s.store.FindByHash(ctx, hashToken(raw))
	if errors.Is(err, sentinel.ErrNotFound) {
		return Info{}, dErrors.New(dErrors.CodeNotFound, "invalid or expired token")
	}
	if err != nil {
		return Info{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up token")
	}
	if !record.Usable(s.now()) {
		return Info{}, dErrors.New(dErrors.CodeNotFound, "invalid or expired token")
	}
	return Info{
		UIN:           record.UIN,
		PersonalEmail: record.PersonalEmail,
		ClassYear:     record.ClassYear,
		ExpiresAt:     record.ExpiresAt,
	}, nil
}

// MarkClaimed retires the token. Exactly one caller can succeed; the second
// sees a conflict.
func (s *Service) MarkClaimed(ctx context.Context, raw string) error {
	err := s.store.ClaimIfUnclaimed(ctx, hashToken(raw), s.now())
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "invalid or expired token")
	}
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return dErrors.New(dErrors.CodeConflict, "token already claimed")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "claim token")
	}
	return nil
}

func (s *Service) mintAndDeliver(ctx context.Context, student *models.StudentRecord, trigger string) error {
	email, ok := validation.NormalizeEmail(student.PersonalEmail)
	if !ok {
		return fmt.Errorf("malformed personal email on file")
	}

	raw, err := s.Mint(ctx, student)
	if err != nil {
		return err
	}
	s.metrics.IncrementTokensIssued(trigger)

	if s.channel == nil {
		s.metrics.IncrementDelivery("skipped")
		s.logger.InfoContext(ctx, "no delivery channel configured, token minted without send", "uin", student.UIN)
		return nil
	}
	if err := s.channel.Send(ctx, email, "Claim your graduate account", s.claimEmailBody(raw)); err != nil {
		s.metrics.IncrementDelivery("failed")
		return fmt.Errorf("deliver magic link: %w", err)
	}
	s.metrics.IncrementDelivery("sent")
	return nil
}

func (s *Service) claimEmailBody(raw string) string {
	return fmt.Sprintf(
		"Congratulations on graduating!\n\n"+
			"Your student account is being retired. Claim your permanent graduate "+
			"account using the link below. The link is valid for 7 days and can be "+
			"used once.\n\n%s\n\n"+
			"If you did not expect this email you can ignore it.",
		s.MagicLink(raw))
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Package audit records handover attempts for operator review. Recording is
// best effort: an audit failure is logged and swallowed, never surfaced to
// the account holder mid-handover.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher mirrors entries to an external sink. Optional.
type Publisher interface {
	Publish(entry Entry)
}

// Recorder writes the INITIATED / SUCCESS / FAILED trail for link attempts.
type Recorder struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecorder(store Store, publisher Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// WithClock overrides the entry timestamp clock. Tests only.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Begin opens an attempt trail and returns the handover ID correlating its
// later Complete or Fail entry.
func (r *Recorder) Begin(ctx context.Context, accountID, uin, personalEmail string) string {
	id := uuid.NewString()
	r.record(ctx, Entry{
		HandoverID:    id,
		Timestamp:     r.now(),
		Status:        StatusInitiated,
		AccountID:     accountID,
		UIN:           uin,
		PersonalEmail: personalEmail,
	})
	return id
}

// Complete closes the trail as successful.
func (r *Recorder) Complete(ctx context.Context, handoverID, accountID, uin string) {
	r.record(ctx, Entry{
		HandoverID: handoverID,
		Timestamp:  r.now(),
		Status:     StatusSuccess,
		AccountID:  accountID,
		UIN:        uin,
	})
}

// Fail closes the trail with a truncated failure reason.
func (r *Recorder) Fail(ctx context.Context, handoverID, accountID, uin, reason string) {
	r.record(ctx, Entry{
		HandoverID: handoverID,
		Timestamp:  r.now(),
		Status:     StatusFailed,
		AccountID:  accountID,
		UIN:        uin,
		Reason:     truncateReason(reason),
	})
}

// Recent returns the newest entries for the admin log view.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.store.Recent(ctx, limit)
}

func (r *Recorder) record(ctx context.Context, entry Entry) {
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"handover_id", entry.HandoverID, "status", entry.Status, "error", err)
	}
	if r.publisher != nil {
		r.publisher.Publish(entry)
	}
}

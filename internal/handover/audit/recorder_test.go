package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type failingStore struct{}

func (failingStore) Append(context.Context, Entry) error { return errors.New("disk full") }
func (failingStore) Recent(context.Context, int) ([]Entry, error) {
	return nil, errors.New("disk full")
}

type capturingPublisher struct {
	entries []Entry
}

func (p *capturingPublisher) Publish(entry Entry) {
	p.entries = append(p.entries, entry)
}

type AuditRecorderSuite struct {
	suite.Suite
	store    *InMemory
	recorder *Recorder
	ctx      context.Context
}

func (s *AuditRecorderSuite) SetupTest() {
	s.store = NewInMemory()
	s.recorder = NewRecorder(s.store, nil, slog.New(slog.DiscardHandler))
	s.ctx = context.Background()
}

func TestAuditRecorderSuite(t *testing.T) {
	suite.Run(t, new(AuditRecorderSuite))
}

func (s *AuditRecorderSuite) TestTrailCorrelation() {
	id := s.recorder.Begin(s.ctx, "acct-1", "100123456", "grad@x.com")
	s.Require().NotEmpty(id)
	s.recorder.Complete(s.ctx, id, "acct-1", "100123456")

	entries, err := s.recorder.Recent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Equal(StatusSuccess, entries[0].Status, "newest first")
	s.Equal(StatusInitiated, entries[1].Status)
	s.Equal(id, entries[0].HandoverID)
	s.Equal(id, entries[1].HandoverID)
	s.Equal("grad@x.com", entries[1].PersonalEmail, "the opening entry carries the requesting address")
	s.Empty(entries[0].PersonalEmail)
}

func (s *AuditRecorderSuite) TestFailReasonTruncation() {
	id := s.recorder.Begin(s.ctx, "acct-1", "100123456", "grad@x.com")
	s.recorder.Fail(s.ctx, id, "acct-1", "100123456", strings.Repeat("x", 2000))

	entries, err := s.recorder.Recent(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(StatusFailed, entries[0].Status)
	s.Len(entries[0].Reason, 500)
}

func (s *AuditRecorderSuite) TestRecordingNeverPanicsOrErrors() {
	recorder := NewRecorder(failingStore{}, nil, slog.New(slog.DiscardHandler))

	s.NotPanics(func() {
		id := recorder.Begin(s.ctx, "acct-1", "100123456", "grad@x.com")
		recorder.Complete(s.ctx, id, "acct-1", "100123456")
		recorder.Fail(s.ctx, id, "acct-1", "100123456", "boom")
	})
}

func (s *AuditRecorderSuite) TestPublisherMirroring() {
	pub := &capturingPublisher{}
	recorder := NewRecorder(s.store, pub, slog.New(slog.DiscardHandler))

	id := recorder.Begin(s.ctx, "acct-1", "100123456", "grad@x.com")
	recorder.Fail(s.ctx, id, "acct-1", "100123456", "uin mismatch")

	s.Require().Len(pub.entries, 2)
	s.Equal(StatusInitiated, pub.entries[0].Status)
	s.Equal(StatusFailed, pub.entries[1].Status)
}

func (s *AuditRecorderSuite) TestRetentionWindow() {
	old := time.Now().Add(-RetentionWindow - time.Hour)
	s.Require().NoError(s.store.Append(s.ctx, Entry{
		HandoverID: "stale", Timestamp: old, Status: StatusSuccess,
	}))
	id := s.recorder.Begin(s.ctx, "acct-1", "100123456", "grad@x.com")

	entries, err := s.recorder.Recent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(id, entries[0].HandoverID)
}

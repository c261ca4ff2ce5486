package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gradlink/pkg/platform/sentinel"
)

// PostgresStore persists token records in the handover_tokens table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO handover_tokens (token_hash, uin, personal_email, class_year, issued_at, expires_at, claimed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Hash, record.UIN, record.PersonalEmail, record.ClassYear,
		record.IssuedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert handover token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*Record, error) {
	query := `
		SELECT token_hash, uin, personal_email, class_year, issued_at, expires_at,
		       claimed, COALESCE(claimed_at, 'epoch'::timestamptz)
		FROM handover_tokens
		WHERE token_hash = $1
	`
	var r Record
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&r.Hash, &r.UIN, &r.PersonalEmail, &r.ClassYear,
		&r.IssuedAt, &r.ExpiresAt, &r.Claimed, &r.ClaimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query handover token: %w", err)
	}
	return &r, nil
}

// ClaimIfUnclaimed flips the record to claimed as a single conditional
// update. A zero-row result is disambiguated with a follow-up read.
func (s *PostgresStore) ClaimIfUnclaimed(ctx context.Context, hash string, now time.Time) error {
	query := `
		UPDATE handover_tokens
		SET claimed = TRUE, claimed_at = $2
		WHERE token_hash = $1 AND claimed = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, hash, now)
	if err != nil {
		return fmt.Errorf("claim handover token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim handover token: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.FindByHash(ctx, hash); err != nil {
		return err
	}
	return fmt.Errorf("token already claimed: %w", sentinel.ErrAlreadyUsed)
}

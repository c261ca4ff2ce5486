package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists audit entries in the handover_audit table. Rows
// carry an expires_at column so retention can be enforced by a periodic
// DELETE; reads filter on it regardless.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO handover_audit (handover_id, ts, status, account_id, uin, personal_email, reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.HandoverID, entry.Timestamp, string(entry.Status),
		entry.AccountID, entry.UIN, entry.PersonalEmail, entry.Reason,
		entry.Timestamp.Add(RetentionWindow))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns entries newest-first. A row that fails to scan is skipped
// rather than failing the whole page; the audit view degrades instead of
// breaking.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT handover_id, ts, status, account_id, uin, personal_email, COALESCE(reason, '')
		FROM handover_audit
		WHERE expires_at > $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			status string
		)
		if err := rows.Scan(&e.HandoverID, &e.Timestamp, &status, &e.AccountID, &e.UIN, &e.PersonalEmail, &e.Reason); err != nil {
			continue
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

// Prune deletes entries past the retention window. Run periodically; reads
// are correct without it.
func (s *PostgresStore) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM handover_audit WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

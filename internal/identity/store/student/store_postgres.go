package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gradlink/internal/identity/models"
	"gradlink/pkg/platform/sentinel"
)

// PostgresStore reads student records from the students table, which is
// replicated from the institution's system of record.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// scanPageSize bounds one page of the eligibility query. The scan consumes
// every page before returning.
const scanPageSize = 500

func (s *PostgresStore) FindByUIN(ctx context.Context, uin string) (*models.StudentRecord, error) {
	query := `
		SELECT uin, grad_date, account_status, personal_email, class_year
		FROM students
		WHERE uin = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uin))
}

// FindEligible pages through every STUDENT record with grad_date <= today
// using keyset pagination on the UIN primary key. No lock is held between
// pages; duplicate tokens across repeated scans are tolerated downstream.
func (s *PostgresStore) FindEligible(ctx context.Context, today time.Time) ([]models.StudentRecord, error) {
	query := `
		SELECT uin, grad_date, account_status, personal_email, class_year
		FROM students
		WHERE account_status = $1 AND grad_date <= $2 AND uin > $3
		ORDER BY uin
		LIMIT $4
	`

	var (
		out     []models.StudentRecord
		lastUIN string
	)
	for {
		rows, err := s.db.QueryContext(ctx, query,
			string(models.StudentStatusStudent), today, lastUIN, scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("query eligible students: %w", err)
		}

		var page []models.StudentRecord
		for rows.Next() {
			var (
				r      models.StudentRecord
				status string
			)
			if err := rows.Scan(&r.UIN, &r.GradDate, &status, &r.PersonalEmail, &r.ClassYear); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan student record: %w", err)
			}
			r.AccountStatus = models.StudentStatus(status)
			page = append(page, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate student records: %w", err)
		}
		rows.Close()

		out = append(out, page...)
		if len(page) < scanPageSize {
			return out, nil
		}
		lastUIN = page[len(page)-1].UIN
	}
}

func (s *PostgresStore) FindByPersonalEmail(ctx context.Context, email string) (*models.StudentRecord, error) {
	query := `
		SELECT uin, grad_date, account_status, personal_email, class_year
		FROM students
		WHERE account_status = $1 AND lower(personal_email) = lower($2)
		ORDER BY uin
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, string(models.StudentStatusStudent), email))
}

// Put creates or replaces a record. Used by seeding and tests; production
// rows arrive through replication.
func (s *PostgresStore) Put(ctx context.Context, record *models.StudentRecord) error {
	query := `
		INSERT INTO students (uin, grad_date, account_status, personal_email, class_year)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uin) DO UPDATE
		SET grad_date = EXCLUDED.grad_date,
		    account_status = EXCLUDED.account_status,
		    personal_email = EXCLUDED.personal_email,
		    class_year = EXCLUDED.class_year
	`
	_, err := s.db.ExecContext(ctx, query,
		record.UIN, record.GradDate, string(record.AccountStatus), record.PersonalEmail, record.ClassYear)
	if err != nil {
		return fmt.Errorf("upsert student record: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.StudentRecord, error) {
	var (
		r      models.StudentRecord
		status string
	)
	err := row.Scan(&r.UIN, &r.GradDate, &status, &r.PersonalEmail, &r.ClassYear)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query student record: %w", err)
	}
	r.AccountStatus = models.StudentStatus(status)
	return &r, nil
}

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gradlink/internal/identity/models"
	"gradlink/pkg/platform/sentinel"
)

// PostgresStore persists accounts in the accounts table. The handover link is
// one UPDATE guarded by "linked_uin IS NULL" plus a unique index on
// linked_uin, which together close the race between concurrent claims.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates an account store backed by the given database.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, role, class_year, linked_uin, personal_email, profile_url, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		string(account.Role),
		account.ClassYear,
		account.LinkedUIN,
		account.PersonalEmail,
		account.ProfileURL,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, `WHERE email = lower($1)`, email)
}

func (s *PostgresStore) FindByLinkedUIN(ctx context.Context, uin string) (*models.Account, error) {
	return s.findOne(ctx, `WHERE linked_uin = $1`, uin)
}

// LinkIfUnlinked issues the conditional handover write. Zero rows affected
// means the precondition failed; the follow-up read disambiguates "account
// missing" from "already linked". A unique-index violation on linked_uin
// means another account holds the UIN.
func (s *PostgresStore) LinkIfUnlinked(ctx context.Context, accountID, uin, classYear, personalEmail string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET role = $2,
		    linked_uin = $3,
		    class_year = COALESCE(NULLIF($4, ''), class_year),
		    personal_email = COALESCE(NULLIF($5, ''), personal_email),
		    updated_at = $6
		WHERE id = $1 AND linked_uin IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		accountID,
		string(models.RoleFormerStudent),
		uin,
		classYear,
		personalEmail,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("uin already linked: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("link account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("link account: %w", err)
	}
	if affected == 0 {
		existing, findErr := s.FindByID(ctx, accountID)
		if findErr != nil {
			return nil, findErr
		}
		if existing.Linked() {
			return nil, fmt.Errorf("account already linked: %w", sentinel.ErrInvalidState)
		}
		return nil, fmt.Errorf("link account: %w", sentinel.ErrConflict)
	}

	return s.FindByID(ctx, accountID)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, accountID, classYear, profileURL string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET class_year = COALESCE(NULLIF($2, ''), class_year),
		    profile_url = COALESCE(NULLIF($3, ''), profile_url),
		    updated_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, accountID, classYear, profileURL, now)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	return s.FindByID(ctx, accountID)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `
		SELECT id, email, role, class_year, COALESCE(linked_uin, ''), personal_email, profile_url, created_at, updated_at
		FROM accounts ` + where

	var (
		a    models.Account
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&role,
		&a.ClassYear,
		&a.LinkedUIN,
		&a.PersonalEmail,
		&a.ProfileURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	a.Role = models.Role(role)
	return &a, nil
}

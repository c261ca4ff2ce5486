package models

import (
	"time"

	dErrors "gradlink/pkg/domain-errors"
)

// Role classifies an external-facing account.
type Role string

const (
	RolePartner       Role = "PARTNER"
	RoleFormerStudent Role = "FORMER_STUDENT"
	RoleFriend        Role = "FRIEND"
)

var validRoles = map[Role]bool{
	RolePartner:       true,
	RoleFormerStudent: true,
	RoleFriend:        true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Account is the durable external identity.
//
// Invariants:
//   - ID is provider-issued and immutable
//   - LinkedUIN, once non-empty, never changes and is unique across accounts
//   - Role transitions only FRIEND|PARTNER -> FORMER_STUDENT, and only
//     through the handover link operation
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	ClassYear     string    `json:"class_year,omitempty"`
	LinkedUIN     string    `json:"linked_uin,omitempty"`
	PersonalEmail string    `json:"personal_email,omitempty"`
	ProfileURL    string    `json:"profile_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Linked reports whether the account has completed a handover.
func (a *Account) Linked() bool { return a.LinkedUIN != "" }

// CanLink checks the account-side precondition for a handover link.
func (a *Account) CanLink() error {
	if a.Linked() {
		return dErrors.New(dErrors.CodeInvariantViolation, "account already linked to a student UIN")
	}
	return nil
}

// ApplyLink performs the role/UIN transition. Call CanLink first; stores use
// this inside their conditional update so the account is never observable
// half-linked.
func (a *Account) ApplyLink(uin, classYear, personalEmail string, now time.Time) {
	a.Role = RoleFormerStudent
	a.LinkedUIN = uin
	if classYear != "" {
		a.ClassYear = classYear
	}
	if personalEmail != "" {
		a.PersonalEmail = personalEmail
	}
	a.UpdatedAt = now
}

// StudentStatus is the institution's classification of a student record.
type StudentStatus string

const (
	StudentStatusStudent   StudentStatus = "STUDENT"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusWithdrawn StudentStatus = "WITHDRAWN"
)

// StudentRecord mirrors the institution's system of record. This subsystem
// only reads it; status and graduation date transition upstream.
type StudentRecord struct {
	UIN           string        `json:"uin"`
	GradDate      time.Time     `json:"grad_date"`
	AccountStatus StudentStatus `json:"account_status"`
	PersonalEmail string        `json:"personal_email"`
	ClassYear     string        `json:"class_year"`
}

// EligibleForScan reports whether the scheduled scan should mint a token for
// this record on the given run date.
func (r *StudentRecord) EligibleForScan(today time.Time) bool {
	return r.AccountStatus == StudentStatusStudent && !r.GradDate.After(today)
}

// StudentPreview is the redacted projection returned by the pre-link lookup.
// It never carries the personal email on file.
type StudentPreview struct {
	UIN           string        `json:"uin"`
	GradDate      time.Time     `json:"grad_date"`
	AccountStatus StudentStatus `json:"account_status"`
	ClassYear     string        `json:"class_year,omitempty"`
}

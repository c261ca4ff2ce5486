// Package validation holds the pure input predicates shared by registration
// and the handover flows. No dependencies, no I/O.
package validation

import (
	"regexp"
	"strings"

	dErrors "gradlink/pkg/domain-errors"
)

// MinPasswordLength is the institution-wide minimum for external accounts.
const MinPasswordLength = 10

// UINDigits is the fixed length of an institutional ID as issued today.
// Historic records may carry shorter or longer numeric IDs, which is why
// ValidateUIN accepts a range while ExactUIN does not.
const UINDigits = 9

var uinPattern = regexp.MustCompile(`^[0-9]{7,15}$`)

// NormalizeEmail returns the trimmed, lowercased email and whether it looks
// deliverable (has both an @ and a dot).
func NormalizeEmail(value string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" || !strings.Contains(s, "@") || !strings.Contains(s, ".") {
		return "", false
	}
	return s, true
}

// DomainOf extracts the lowercase domain from an email address. Returns ""
// when the input has no domain part.
func DomainOf(email string) string {
	s := strings.TrimSpace(email)
	at := strings.LastIndexByte(s, '@')
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return strings.ToLower(s[at+1:])
}

// ValidateUIN checks the relaxed numeric format accepted on link requests
// and returns the trimmed UIN.
func ValidateUIN(uin string) (string, error) {
	s := strings.TrimSpace(uin)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "UIN is required")
	}
	if !uinPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "UIN must be numeric (7-15 digits)")
	}
	return s, nil
}

// ExactUIN enforces the institution's fixed-length format. The lookup path
// uses this stricter check so typos fail before any store access.
func ExactUIN(uin string) error {
	s := strings.TrimSpace(uin)
	if len(s) != UINDigits {
		return dErrors.Newf(dErrors.CodeValidation, "UIN must be exactly %d digits", UINDigits)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return dErrors.Newf(dErrors.CodeValidation, "UIN must be exactly %d digits", UINDigits)
		}
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if len(password) < MinPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// NormalizeClassYear returns the trimmed class year, which may be empty.
func NormalizeClassYear(value string) string {
	return strings.TrimSpace(value)
}

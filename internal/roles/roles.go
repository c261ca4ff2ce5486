// Package roles classifies a registering account as PARTNER, FORMER_STUDENT,
// or FRIEND. Partner classification wins over a former-student claim so a
// partner-domain signup can never self-select into the handover flow.
package roles

import (
	"context"
	"log/slog"

	"gradlink/internal/identity/models"
	dErrors "gradlink/pkg/domain-errors"
	"gradlink/pkg/platform/circuit"
	"gradlink/pkg/validation"
)

// Directory reports the current set of partner email domains.
type Directory interface {
	PartnerDomains(ctx context.Context) ([]string, error)
}

// fallbackDomains is the development partner set used when the directory is
// unreachable. Resolution fails open: a directory outage must not block
// registration.
var fallbackDomains = []string{"acme.com", "partner.org", "example.com"}

// Engine resolves roles against a partner directory snapshot. A circuit
// breaker dampens directory flapping: after repeated failures the fallback
// set is served without logging every miss, and recovery is logged once.
type Engine struct {
	directory Directory
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

func NewEngine(directory Directory, logger *slog.Logger) *Engine {
	return &Engine{
		directory: directory,
		breaker:   circuit.New("partner-directory", circuit.WithFailureThreshold(5)),
		logger:    logger,
	}
}

// Resolve classifies the given email. It returns the role and the class year
// to record: required for a former-student claim, carried through as supplied
// for partners, dropped for friends.
//
// Precedence: partner domain beats the former-student claim. A former-student
// claim without a class year is a validation error.
func (e *Engine) Resolve(ctx context.Context, email string, formerStudentClaimed bool, classYear string) (models.Role, string, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return "", "", dErrors.New(dErrors.CodeValidation, "invalid email address")
	}

	if e.isPartnerDomain(ctx, validation.DomainOf(normalized)) {
		return models.RolePartner, validation.NormalizeClassYear(classYear), nil
	}

	if formerStudentClaimed {
		year := validation.NormalizeClassYear(classYear)
		if year == "" {
			return "", "", dErrors.New(dErrors.CodeValidation, "class year is required for former students")
		}
		return models.RoleFormerStudent, year, nil
	}

	return models.RoleFriend, "", nil
}

func (e *Engine) isPartnerDomain(ctx context.Context, domain string) bool {
	if domain == "" {
		return false
	}

	domains, err := e.directory.PartnerDomains(ctx)
	if err != nil {
		_, change := e.breaker.RecordFailure()
		if change.Opened {
			e.logger.WarnContext(ctx, "partner directory circuit opened", "error", err)
		} else if !e.breaker.IsOpen() {
			e.logger.WarnContext(ctx, "partner directory unavailable, using fallback set", "error", err)
		}
		domains = fallbackDomains
	} else if _, change := e.breaker.RecordSuccess(); change.Closed {
		e.logger.InfoContext(ctx, "partner directory circuit closed")
	}

	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

// Static is a fixed-snapshot Directory for tests and single-tenant deploys.
type Static struct {
	domains []string
}

func NewStatic(domains ...string) *Static {
	return &Static{domains: domains}
}

func (s *Static) PartnerDomains(context.Context) ([]string, error) {
	return s.domains, nil
}

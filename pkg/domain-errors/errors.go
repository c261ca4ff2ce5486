// Package domainerrors provides coded errors that carry enough semantics for
// the transport layer to pick a response status without re-deriving business
// rules. Services resolve validation and conflict outcomes locally and return
// them as coded errors; upstream failures are wrapped with CodeUpstream or
// CodeInternal.
//
// Import aliased as dErrors by convention:
//
//	dErrors "gradlink/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are stable identifiers; messages are
// for humans and may change.
type Code string

const (
	// CodeBadRequest covers malformed requests (unparseable body, missing
	// required top-level fields).
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers well-formed input that fails a business rule
	// (wrong UIN format, missing class year on a former-student claim).
	CodeValidation Code = "validation"
	// CodeInvalidInput is used by domain primitives at parse boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound covers missing accounts, records, and tokens.
	CodeNotFound Code = "not_found"
	// CodeConflict covers uniqueness violations (account already linked,
	// UIN claimed by another account, duplicate identity).
	CodeConflict Code = "conflict"
	// CodeUnauthorized covers bad credentials or an invalid bearer token.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers authenticated callers lacking permission.
	CodeForbidden Code = "forbidden"
	// CodeUpstream covers failures from the record store, identity
	// provider, or delivery channel that cannot be attributed to input.
	CodeUpstream Code = "upstream_failure"
	// CodeInternal covers everything else; detail is never exposed.
	CodeInternal Code = "internal_error"
	// CodeInvariantViolation marks model-level invariant breaches. It maps
	// to a conflict at the edge but is distinguishable for services that
	// want to translate it.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout covers deadline expiry on collaborator calls.
	CodeTimeout Code = "timeout"
)

// Error is the coded error type. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain. Non-coded errors report
// CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from an error chain, falling
// back to the raw error text for non-coded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability:
// dErrors.Is(err, dErrors.CodeNotFound).
func Is(err error, code Code) bool { return HasCode(err, code) }

// HTTPStatus maps a code to the response status the transport layer should
// use. This is the single source of the code-to-status mapping.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

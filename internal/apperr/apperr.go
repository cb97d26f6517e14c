package apperr

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes returned in the "error" field of JSON error responses.
const (
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeAccountNotLinked    = "account_not_linked"
	CodeUserNotFound        = "user_not_found"
	CodeConfiguration       = "configuration"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeValidation          = "validation"
	CodeConflict            = "conflict"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal_error"
)

// Error is the application error taxonomy. Handlers convert any Error into
// a JSON body {"error": code, "error_description": message} with the
// matching HTTP status.
type Error struct {
	Code    string
	Message string
	Status  int
	Email   string // asserted email, set on account_not_linked for display
	Err     error  // wrapped cause, not serialized
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized indicates a missing, invalid, or expired session.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden indicates an authenticated session with insufficient role or grant.
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

// AccountNotLinked indicates an identity reconciliation conflict. The
// asserted email, when present, is carried for display on the login screen.
func AccountNotLinked(email string) *Error {
	return &Error{
		Code:    CodeAccountNotLinked,
		Message: "identity could not be linked to your account, contact support",
		Status:  http.StatusForbidden,
		Email:   email,
	}
}

// UserNotFound indicates that no provisioned account exists for the
// presented identity.
func UserNotFound(message string) *Error {
	return &Error{Code: CodeUserNotFound, Message: message, Status: http.StatusNotFound}
}

// Configuration indicates missing upstream credentials or URLs. Operator-actionable.
func Configuration(message string) *Error {
	return &Error{Code: CodeConfiguration, Message: message, Status: http.StatusInternalServerError}
}

// UpstreamUnavailable indicates a failed identity provider or rental API request.
func UpstreamUnavailable(message string, err error) *Error {
	return &Error{Code: CodeUpstreamUnavailable, Message: message, Status: http.StatusBadGateway, Err: err}
}

// Validation indicates malformed input to a CRUD action.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

// Conflict indicates a unique-constraint violation such as a duplicate phone number.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

// NotFound indicates a missing record.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a Postgres foreign-key
// violation (SQLSTATE 23503), e.g. a grant naming an unknown user.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

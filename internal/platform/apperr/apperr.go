// Package apperr classifies failures raised by the domain services so the
// HTTP layer can map them onto status codes without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrTransaction = errors.New("transaction failed")
	ErrConstraint  = errors.New("constraint violation")
)

// Error carries a failure kind together with a caller-facing message and the
// underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports a missing or malformed input field.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an absent entity.
func NotFound(entity string, id int64) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %d not found", entity, id)}
}

// Transaction wraps a store failure raised inside a unit of work. Integrity
// violations reported by PostgreSQL are classified as constraint failures.
func Transaction(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && (ae.Kind == ErrValidation || ae.Kind == ErrNotFound) {
		return err
	}
	kind := ErrTransaction
	if IsConstraint(err) {
		kind = ErrConstraint
	}
	return &Error{Kind: kind, Msg: op, Err: err}
}

// Store wraps an error returned by a single statement outside a transaction.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: ErrNotFound, Msg: op, Err: err}
	}
	if IsConstraint(err) {
		return &Error{Kind: ErrConstraint, Msg: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsConstraint reports whether err is a PostgreSQL integrity constraint
// violation (SQLSTATE class 23).
func IsConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
	}
	return false
}

// HTTPError converts err into an echo HTTP error. Diagnostic detail of the
// underlying cause is included for store failures.
func HTTPError(err error) *echo.HTTPError {
	msg := err.Error()
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Msg
	}
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": msg})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, map[string]string{"error": msg})
	case errors.Is(err, ErrConstraint):
		return echo.NewHTTPError(http.StatusConflict, map[string]string{"error": msg, "details": causeOf(err)})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]string{"error": msg, "details": causeOf(err)})
	}
}

func causeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err.Error()
	}
	return err.Error()
}

// Package errors defines the service's sentinel errors and their HTTP
// mapping. Callers wrap sentinels with %w and branch with errors.Is; the
// sentinel decides the status code at the API boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotCorrupt   = errors.New("snapshot unusable")
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)

// AppError pairs a sentinel with a caller-facing message and an explicit
// status code for cases the sentinel mapping cannot express.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel into an AppError.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// HTTPStatusCode resolves the status code for an error chain. An AppError
// with an explicit code wins; otherwise the sentinel decides.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCorpusUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

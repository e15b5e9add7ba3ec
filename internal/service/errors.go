package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

// Errors returned by the enrollment engine. Business outcomes such as unmet
// prerequisites or a full course are results, not errors.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCourseNotFound     = errors.New("course not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrEnrollmentNotFound = errors.New("active enrollment not found")
	ErrLockUnavailable    = errors.New("offering is busy, retry later")

	// ErrConcurrencyConflict is surfaced after the internal retry also conflicts.
	ErrConcurrencyConflict = repository.ErrConcurrencyConflict
)

// InvalidArgumentError describes malformed input rejected before any mutation.
type InvalidArgumentError struct {
	Field string
	Msg   string
}

func (e *InvalidArgumentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidArgument.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidArgument.Error(), e.Field, e.Msg)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalidArgument(field, format string, args ...any) error {
	return &InvalidArgumentError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether the caller may safely repeat the request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrLockUnavailable)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("not permitted")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("conflict")
	ErrTemporary       = errors.New("temporary failure")
)

// ErrInvalidStandard is returned when a building standard code is not in the
// catalog. Its message is shown to API clients as-is.
var ErrInvalidStandard error = &kindError{kind: ErrInvalidInput, msg: "invalid building standard code"}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Forbidden reports an authorization failure without naming the rule that failed.
func Forbidden(operation string) error {
	return fmt.Errorf("%s: %w", operation, ErrForbidden)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

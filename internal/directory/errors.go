package directory

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers map these onto HTTP statuses.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("resource conflict")
	ErrProtected        = errors.New("protected resource")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
)

// Error pairs a sentinel with a caller-facing message. Error() returns the
// message alone so responses read exactly like the source system's.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return &Error{Err: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &Error{Err: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &Error{Err: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func protectedf(format string, args ...any) error {
	return &Error{Err: ErrProtected, Message: fmt.Sprintf(format, args...)}
}

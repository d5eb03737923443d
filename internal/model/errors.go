package model

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a referenced entry, user, or completion that does
// not exist. Stores surface it; callers map it to a 404.
var ErrNotFound = errors.New("not found")

// PermissionError reports an action the acting user is not allowed to
// perform.
type PermissionError struct {
	Username string
	Action   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %q may not %s", e.Username, e.Action)
}

// NewPermissionError creates a PermissionError for the given user and action.
func NewPermissionError(username, action string) *PermissionError {
	return &PermissionError{Username: username, Action: action}
}

// ValidationError reports malformed input: a bad recurrence rule, an
// occurrence instant the entry's rule never produces, an inverted
// window, and the like.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package account

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate is returned when registration collides with an existing
	// account. One generic value for both email and username collisions, so
	// callers can't probe which identifier is taken.
	ErrDuplicate = errors.New("an account with this email or username already exists")

	// ErrInvalidCredentials is returned for every login failure: unknown
	// email and wrong password must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError describes a rejected input field. The message is safe to
// return to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

package services

import (
	"errors"
	"strings"
)

// Domain errors surfaced to the HTTP layer, which maps them to status codes.
var (
	// ErrNotOwner is returned when a valid user tries to mutate a task
	// they do not own.
	ErrNotOwner = errors.New("not authorized to modify this task")

	// ErrInvalidCredentials is returned on any login failure. The cause
	// (unknown email vs wrong password) is intentionally not revealed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when registering with an email that
	// already has an account.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError carries one message per failed field check. It is built
// before any persistence call so invalid input never reaches the database.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// newValidationError is a convenience constructor for single-message failures.
func newValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

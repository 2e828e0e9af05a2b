// Package common defines shared constants, helpers and sentinel errors used
// across the CineCritic server and its tooling. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrForbidden          = errors.New("forbidden")
	ErrSelfDelete         = &selfDeleteError{}
	ErrValidation         = errors.New("validation failed")
	ErrEmptyPassword      = errors.New("empty password")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError carries the human-readable reason a piece of user input
// was rejected. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Reason string
}

// NewValidationError returns a *ValidationError with the given reason.
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// selfDeleteError is returned when an account tries to delete itself. It is
// also a forbidden outcome.
type selfDeleteError struct{}

func (e *selfDeleteError) Error() string {
	return "cannot delete the account you are signed in with"
}

func (e *selfDeleteError) Is(target error) bool {
	return target == ErrForbidden
}

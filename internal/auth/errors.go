package auth

import (
	"errors"
	"strings"
)

var (
	ErrValidation        = errors.New("invalid input")
	ErrMissingMfaContext = errors.New("no pending login awaiting a one-time code")
)

// FailureKind is a display hint derived from the backend's rejection message.
// It selects a title; it never changes control flow.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureLocked
	FailureSuspended
	FailureDisabled
)

func (k FailureKind) String() string {
	switch k {
	case FailureLocked:
		return "locked"
	case FailureSuspended:
		return "suspended"
	case FailureDisabled:
		return "disabled"
	default:
		return "generic"
	}
}

func (k FailureKind) Title() string {
	switch k {
	case FailureLocked:
		return "Account locked"
	case FailureSuspended:
		return "Account suspended"
	case FailureDisabled:
		return "Account disabled"
	default:
		return "Login failed"
	}
}

// Classify looks for lock, suspension and disablement keywords in message.
func Classify(message string) FailureKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "lock"):
		return FailureLocked
	case strings.Contains(m, "suspend"):
		return FailureSuspended
	case strings.Contains(m, "disable"), strings.Contains(m, "deactivat"):
		return FailureDisabled
	default:
		return FailureGeneric
	}
}

// AuthenticationError is a login or MFA verification the backend rejected.
// Message is the backend's text, unchanged.
type AuthenticationError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func IsAuthenticationError(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

package auth

import (
	"errors"
	"strings"
)

// Auth gateway errors
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrConnectivity       = errors.New("credential store unavailable")
)

// User-facing messages
const (
	MsgEmailExists        = "Email already registered. Please use a different email or login."
	MsgInvalidCredentials = "Invalid email or password"
	MsgGenericError       = "An error occurred. Please try again later."
	MsgSignupSuccess      = "Account created successfully! Welcome to CineFlix!"
	MsgLoginRequired      = "Email and password are required"
	MsgInvalidEmail       = "Invalid email format"
)

// ValidationError lists every violated input rule in field order
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// connectivity wraps a store failure so callers can match ErrConnectivity
// while the cause stays available for logging
type connectivity struct {
	op  string
	err error
}

func (e *connectivity) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *connectivity) Unwrap() []error {
	return []error{ErrConnectivity, e.err}
}

func wrapConnectivity(op string, err error) error {
	return &connectivity{op: op, err: err}
}

// UserMessage maps a gateway error to the text shown to the user
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrEmailExists):
		return MsgEmailExists
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	default:
		return MsgGenericError
	}
}

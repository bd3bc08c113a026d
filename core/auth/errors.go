package auth

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
)

var (
	// ErrInvalidCredentials means the backend was reached and rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrServiceUnavailable means the backend could not be reached or answered garbage.
	ErrServiceUnavailable = errors.New("authentication service unavailable")
	// ErrSessionInvalid means the stored session can neither be verified nor refreshed.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrUnknownIdentity is returned by the fixture strategy for emails it does not know.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// Message returns the text to show a person for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnknownIdentity):
		return "Invalid email or password. Please check your credentials."
	case errors.Is(err, ErrSessionInvalid), errors.Is(err, session.ErrMalformedStorage):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrServiceUnavailable):
		return "The service is unavailable right now. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

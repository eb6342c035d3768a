package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for the authenticated client
var (
	// ErrNoCredential means there was nothing to attach. The request still goes out unauthenticated.
	ErrNoCredential = errors.New("no credential")
	// ErrExpiredCredential is a 401 from a protected endpoint
	ErrExpiredCredential = errors.New("expired credential")
	// ErrRefreshFailure ends the current session
	ErrRefreshFailure = errors.New("refresh failure")
	// ErrTransportFailure covers every other network or HTTP error
	ErrTransportFailure = errors.New("transport failure")

	// Response errors
	ErrInvalidAuthResponse = errors.New("invalid auth response")
	ErrNoRefreshToken      = errors.New("no refresh token found")

	// Store errors
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrCorruptExpiry    = errors.New("corrupt expiry value")

	// Request errors
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// StatusError is a completed HTTP exchange with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is maps a 401 to ErrExpiredCredential and everything else to ErrTransportFailure.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrExpiredCredential:
		return e.StatusCode == http.StatusUnauthorized
	case ErrTransportFailure:
		return e.StatusCode != http.StatusUnauthorized
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// New is errors.New
func New(text string) error {
	return errors.New(text)
}

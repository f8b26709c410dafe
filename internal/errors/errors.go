package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SwingSense client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotVerified    = errors.New("user is not verified")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshFailed   = errors.New("session refresh failed")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Gateway errors
	ErrDecode         = errors.New("response decode failed")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// General errors
	ErrNotMounted  = errors.New("auth context not mounted")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

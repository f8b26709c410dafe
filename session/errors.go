package session

import (
	"errors"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
)

// Auth error codes reported by the session sources.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserExists         = "user_already_exists"
	CodeWeakPassword       = "weak_password"
	CodeInvalidRequest     = "invalid_request"
)

// AuthError is an expected authentication failure. Message is safe to show to
// the user as is.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap maps the code onto the shared sentinel errors so callers can use
// errors.Is(err, apperrors.ErrInvalidCredentials).
func (e *AuthError) Unwrap() error {
	switch e.Code {
	case CodeInvalidCredentials:
		return apperrors.ErrInvalidCredentials
	case CodeEmailNotConfirmed:
		return apperrors.ErrUserNotVerified
	case CodeUserExists:
		return apperrors.ErrUserExists
	case CodeInvalidRequest, CodeWeakPassword:
		return apperrors.ErrInvalidRequest
	}
	return nil
}

// AsAuthError extracts an *AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

package session

import (
	"context"
	"time"
)

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the provider-issued proof of authentication. It is owned by a
// Source; everything else works on copies.
type Session struct {
	AccessToken  string    // Short-lived bearer credential
	RefreshToken string    // Opaque, only meaningful to the Source
	Expiry       time.Time // Zero means the provider did not report one
	User         Identity
}

// Valid reports whether the access token can still be presented at now.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return s.Expiry.IsZero() || now.Before(s.Expiry)
}

// Clone returns a copy that callers can keep without aliasing the Source.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SignUpResult distinguishes "account created" from "account authenticated".
// Session is only set when the provider signed the new account in straight away.
type SignUpResult struct {
	User                 Identity
	Session              *Session
	ConfirmationRequired bool
}

// Source is the identity provider abstraction. Expected authentication
// failures (bad credentials, unverified account) are returned as *AuthError;
// any other error is a transport or provider failure.
type Source interface {
	// GetSession returns the current session, or nil when signed out. Sources
	// may refresh the token before returning it.
	GetSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (SignUpResult, error)
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn for every session change and returns the
	// function that deregisters it.
	OnSessionChange(fn func(Event)) (unsubscribe func())
}

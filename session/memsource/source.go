// Package memsource is an in-process identity provider. It backs local
// development and tests with the same contract as a remote provider.
package memsource

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
)

const (
	defaultTokenTTL      = time.Hour
	defaultRefreshMargin = time.Minute
	defaultIssuer        = "swingsense-local"
)

// Messages mirror what the hosted provider returns so pages read the same in
// development.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgUserExists         = "User already registered"
	msgWeakPassword       = "Password should be at least 6 characters."
	msgMissingCredentials = "Email and password are required"
)

type Option func(*Source)

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Source) { s.ttl = ttl }
}

// WithRefreshMargin sets how close to expiry GetSession refreshes the token.
func WithRefreshMargin(margin time.Duration) Option {
	return func(s *Source) { s.refreshMargin = margin }
}

func WithAutoConfirm(autoConfirm bool) Option {
	return func(s *Source) { s.autoConfirm = autoConfirm }
}

func WithSecret(secret string) Option {
	return func(s *Source) { s.secret = []byte(secret) }
}

func WithIssuer(issuer string) Option {
	return func(s *Source) { s.issuer = issuer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// Source keeps users and the single current session in memory.
type Source struct {
	mu      sync.Mutex // guards current and orders state changes with their events
	current *session.Session

	users         *userStore
	events        *session.Broadcaster
	secret        []byte
	issuer        string
	ttl           time.Duration
	refreshMargin time.Duration
	autoConfirm   bool
	now           func() time.Time
}

var _ session.Source = (*Source)(nil)

func New(opts ...Option) *Source {
	s := &Source{
		users:         newUserStore(),
		events:        session.NewBroadcaster(),
		secret:        []byte("local-dev-secret"),
		issuer:        defaultIssuer,
		ttl:           defaultTokenTTL,
		refreshMargin: defaultRefreshMargin,
		now:           NowTimeFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSession returns a copy of the current session, refreshing it first when
// it is within the refresh margin of its expiry.
func (s *Source) GetSession(ctx context.Context) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, nil
	}
	if !s.now().Before(s.current.Expiry.Add(-s.refreshMargin)) {
		if err := s.refreshLocked(); err != nil {
			return nil, err
		}
	}
	return s.current.Clone(), nil
}

// Refresh re-issues the access token for the current session.
func (s *Source) Refresh(ctx context.Context) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err := s.refreshLocked(); err != nil {
		return nil, err
	}
	return s.current.Clone(), nil
}

func (s *Source) refreshLocked() error {
	u, err := s.users.getByEmail(s.current.User.Email)
	if err != nil {
		// The account vanished underneath the session.
		s.current = nil
		s.events.Emit(session.EventSignedOut, nil)
		return apperrors.Wrapf(apperrors.ErrRefreshFailed, "refresh session")
	}
	next, err := s.mintSession(u)
	if err != nil {
		return err
	}
	s.current = next
	s.events.Emit(session.EventTokenRefreshed, next)
	log.Debug().Str("user_id", u.ID).Time("expiry", next.Expiry).Msg("session refreshed")
	return nil
}

func (s *Source) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, &session.AuthError{Code: session.CodeInvalidRequest, Message: msgMissingCredentials}
	}

	u, err := s.users.getByEmail(email)
	if err != nil || !checkPasswordHash(password, u.PasswordHash) {
		return nil, &session.AuthError{Code: session.CodeInvalidCredentials, Message: msgInvalidCredentials}
	}
	if !u.Verified {
		return nil, &session.AuthError{Code: session.CodeEmailNotConfirmed, Message: msgEmailNotConfirmed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mintSession(u)
	if err != nil {
		return nil, err
	}
	s.current = next
	s.users.setLastLogin(u.Email, s.now())
	s.events.Emit(session.EventSignedIn, next)
	return next.Clone(), nil
}

func (s *Source) SignUp(ctx context.Context, email, password string) (session.SignUpResult, error) {
	if err := ctx.Err(); err != nil {
		return session.SignUpResult{}, err
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return session.SignUpResult{}, &session.AuthError{Code: session.CodeInvalidRequest, Message: msgMissingCredentials}
	}
	if len(password) < minPasswordLength {
		return session.SignUpResult{}, &session.AuthError{Code: session.CodeWeakPassword, Message: msgWeakPassword}
	}

	u, err := s.users.create(email, password, s.autoConfirm, s.now())
	if errors.Is(err, apperrors.ErrUserExists) {
		return session.SignUpResult{}, &session.AuthError{Code: session.CodeUserExists, Message: msgUserExists}
	}
	if err != nil {
		return session.SignUpResult{}, err
	}

	result := session.SignUpResult{User: session.Identity{ID: u.ID, Email: u.Email}}
	if !s.autoConfirm {
		result.ConfirmationRequired = true
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.mintSession(u)
	if err != nil {
		return session.SignUpResult{}, err
	}
	s.current = next
	s.events.Emit(session.EventSignedIn, next)
	result.Session = next.Clone()
	return result, nil
}

func (s *Source) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.events.Emit(session.EventSignedOut, nil)
	return ctx.Err()
}

// Expire drops the current session as if its refresh had been rejected.
func (s *Source) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current = nil
	s.events.Emit(session.EventSignedOut, nil)
}

// Confirm marks a pending account as verified, standing in for the emailed
// confirmation link.
func (s *Source) Confirm(email string) error {
	return s.users.setVerified(email, true)
}

func (s *Source) OnSessionChange(fn func(session.Event)) func() {
	return s.events.Subscribe(fn)
}

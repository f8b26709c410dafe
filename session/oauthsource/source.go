// Package oauthsource is a session.Source backed by a remote OAuth2/OIDC
// identity provider.
package oauthsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Provider endpoint paths, relative to the identity URL.
const (
	PathToken  = "/oauth2/token"
	PathRevoke = "/oauth2/revoke"
	PathSignUp = "/auth/signup"
	PathJWKS   = "/.well-known/jwks.json"
)

type Config struct {
	IdentityURL string // Issuer root, e.g. "https://auth.example.com"
	ClientID    string // Public client id (the provider's anon key)
	Scopes      []string
	HTTPClient  *http.Client
}

// Source keeps the current token in a refreshing oauth2.TokenSource.
type Source struct {
	identityURL string
	clientID    string
	httpClient  *http.Client
	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	events      *session.Broadcaster

	mu      sync.Mutex
	tokens  oauth2.TokenSource
	current *session.Session
}

var _ session.Source = (*Source)(nil)

func New(ctx context.Context, cfg Config) *Source {
	identityURL := strings.TrimRight(cfg.IdentityURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", oidc.ScopeOfflineAccess}
	}

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, httpClient), identityURL+PathJWKS)

	return &Source{
		identityURL: identityURL,
		clientID:    cfg.ClientID,
		httpClient:  httpClient,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  identityURL + PathToken,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: scopes,
		},
		verifier: oidc.NewVerifier(identityURL, keySet, &oidc.Config{ClientID: cfg.ClientID}),
		events:   session.NewBroadcaster(),
	}
}

// clientContext makes the oauth2 package use our HTTP client.
func (s *Source) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// GetSession refreshes the token when it is close to expiry. A rejected
// refresh, or an expired token with no refresh token, ends the session. A
// provider outage returns an error and keeps it.
func (s *Source) GetSession(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil || s.current == nil {
		return nil, nil
	}

	tok, err := s.tokens.Token()
	if err != nil {
		if s.current.RefreshToken == "" {
			// Expired and nothing to refresh it with.
			log.Info().Msg("session expired without a refresh token")
			s.endLocked()
			return nil, nil
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			log.Warn().Str("error_code", retrieveErr.ErrorCode).Msg("session refresh rejected")
			s.endLocked()
			return nil, nil
		}
		// Provider unavailable: keep the session and report the failure.
		return nil, apperrors.Wrapf(err, "refresh session")
	}

	if tok.AccessToken != s.current.AccessToken {
		next, err := s.sessionFromToken(ctx, tok)
		if err != nil {
			return nil, err
		}
		s.current = next
		s.events.Emit(session.EventTokenRefreshed, next)
	}
	return s.current.Clone(), nil
}

func (s *Source) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	tok, err := s.oauth.PasswordCredentialsToken(s.clientContext(ctx), email, password)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return s.establish(ctx, tok)
}

// establish installs tok as the current session and announces it.
func (s *Source) establish(ctx context.Context, tok *oauth2.Token) (*session.Session, error) {
	next, err := s.sessionFromToken(ctx, tok)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The refresher outlives the sign-in request, so it gets a background context.
	s.tokens = s.oauth.TokenSource(s.clientContext(context.Background()), tok)
	s.current = next
	s.events.Emit(session.EventSignedIn, next)
	return next.Clone(), nil
}

// SignOut clears the local session before talking to the provider, so a
// failed revocation never leaves the user signed in.
func (s *Source) SignOut(ctx context.Context) error {
	s.mu.Lock()
	previous := s.current
	s.clearLocked()
	s.events.Emit(session.EventSignedOut, nil)
	s.mu.Unlock()

	if previous == nil {
		return nil
	}

	var errs []error
	if previous.RefreshToken != "" {
		errs = append(errs, s.revoke(ctx, previous.RefreshToken, "refresh_token"))
	}
	if previous.AccessToken != "" {
		errs = append(errs, s.revoke(ctx, previous.AccessToken, "access_token"))
	}
	return errors.Join(errs...)
}

func (s *Source) clearLocked() {
	s.tokens = nil
	s.current = nil
}

// endLocked destroys the session and announces it.
func (s *Source) endLocked() {
	s.clearLocked()
	s.events.Emit(session.EventSignedOut, nil)
}

func (s *Source) OnSessionChange(fn func(session.Event)) func() {
	return s.events.Subscribe(fn)
}

// classifyTokenError turns token endpoint rejections into AuthErrors and
// leaves everything else as a transport failure.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil ||
		retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("token request failed: %w", err)
	}

	authErr := &session.AuthError{Code: session.CodeInvalidCredentials, Message: "Invalid login credentials"}
	switch retrieveErr.ErrorCode {
	case "email_not_confirmed", "unverified_user":
		authErr.Code = session.CodeEmailNotConfirmed
		authErr.Message = "Email not confirmed"
	case "invalid_request":
		authErr.Code = session.CodeInvalidRequest
		authErr.Message = "Email and password are required"
	}
	if retrieveErr.ErrorDescription != "" {
		authErr.Message = retrieveErr.ErrorDescription
	}
	return authErr
}

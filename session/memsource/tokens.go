package memsource

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
)

// accessClaims are the claims carried by locally minted access tokens. They
// match what the backend reads: sub and email.
type accessClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

func (s *Source) mintSession(u *user) (*session.Session, error) {
	now := s.now()
	expiry := now.Add(s.ttl)
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			Audience:  jwtlib.ClaimStrings{"authenticated"},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiry),
			ID:        uuid.New().String(), // unique per token so refreshes always differ
		},
		Email: u.Email,
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	return &session.Session{
		AccessToken:  signed,
		RefreshToken: refresh,
		Expiry:       expiry,
		User:         session.Identity{ID: u.ID, Email: u.Email},
	}, nil
}

// VerifyAccessToken validates a token minted by this source and returns the
// identity it was issued to.
func (s *Source) VerifyAccessToken(token string) (session.Identity, error) {
	claims := &accessClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return session.Identity{}, apperrors.Wrapf(apperrors.ErrInvalidToken, "verify access token: %v", err)
	}
	return session.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

func randomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NowTimeFunc returns the current time. It can be overridden per source with WithClock.
var NowTimeFunc = time.Now

package oauthsource

import (
	"context"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
	"golang.org/x/oauth2"
)

type identityClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// sessionFromToken builds a Session from a token response. The identity comes
// from the verified ID token when the provider sent one, otherwise from the
// access token claims. Access token signatures are checked by the backend, not here.
func (s *Source) sessionFromToken(ctx context.Context, tok *oauth2.Token) (*session.Session, error) {
	var claims identityClaims

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := s.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, apperrors.Wrapf(err, "ID token verification failed")
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, apperrors.Wrapf(err, "failed to extract ID token claims")
		}
	} else {
		mapClaims := jwtlib.MapClaims{}
		if _, _, err := jwtlib.NewParser().ParseUnverified(tok.AccessToken, mapClaims); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "parse access token: %v", err)
		}
		claims.Sub, _ = mapClaims["sub"].(string)
		claims.Email, _ = mapClaims["email"].(string)
	}

	if claims.Sub == "" {
		return nil, fmt.Errorf("token has no subject: %w", apperrors.ErrInvalidToken)
	}

	return &session.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		User:         session.Identity{ID: claims.Sub, Email: claims.Email},
	}, nil
}

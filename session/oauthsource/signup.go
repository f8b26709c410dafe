package oauthsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/swingsense/session"
	"golang.org/x/oauth2"
)

// signUpResponse is the provider's sign-up answer. The token fields are only
// present when the account does not need confirmation.
type signUpResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type providerError struct {
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (s *Source) SignUp(ctx context.Context, email, password string) (session.SignUpResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return session.SignUpResult{}, fmt.Errorf("encode sign up request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.identityURL+PathSignUp, bytes.NewReader(payload))
	if err != nil {
		return session.SignUpResult{}, fmt.Errorf("build sign up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.clientID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return session.SignUpResult{}, fmt.Errorf("sign up request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.SignUpResult{}, fmt.Errorf("read sign up response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return session.SignUpResult{}, signUpAuthError(body)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.SignUpResult{}, fmt.Errorf("sign up returned %s", resp.Status)
	}

	var out signUpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return session.SignUpResult{}, fmt.Errorf("decode sign up response: %w", err)
	}

	result := session.SignUpResult{User: session.Identity{ID: out.User.ID, Email: out.User.Email}}
	if out.AccessToken == "" {
		result.ConfirmationRequired = true
		return result, nil
	}

	tok := &oauth2.Token{
		AccessToken:  out.AccessToken,
		TokenType:    out.TokenType,
		RefreshToken: out.RefreshToken,
	}
	if out.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	if out.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": out.IDToken})
	}

	current, err := s.establish(ctx, tok)
	if err != nil {
		return session.SignUpResult{}, err
	}
	result.Session = current
	if result.User.ID == "" {
		result.User = current.User
	}
	return result, nil
}

func signUpAuthError(body []byte) error {
	var pe providerError
	_ = json.Unmarshal(body, &pe)

	code := pe.ErrorCode
	if code == "" {
		code = pe.Error
	}
	authErr := &session.AuthError{Code: session.CodeInvalidRequest, Message: "Sign up failed"}
	switch code {
	case "user_already_exists", "email_exists":
		authErr.Code = session.CodeUserExists
		authErr.Message = "User already registered"
	case "weak_password":
		authErr.Code = session.CodeWeakPassword
	}
	if msg := firstNonEmpty(pe.ErrorDescription, pe.Msg); msg != "" {
		authErr.Message = msg
	}
	return authErr
}

// revoke asks the provider to invalidate a token (RFC 7009).
func (s *Source) revoke(ctx context.Context, token, tokenTypeHint string) error {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", s.clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.identityURL+PathRevoke, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", tokenTypeHint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke %s returned %s", tokenTypeHint, resp.Status)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/swingsense/authctx"
	"github.com/rs/zerolog/log"
)

const modeSignUp = "signup"

// loginPage is the sign-in / sign-up form model.
type loginPage struct {
	layout
	Mode    string
	Email   string
	Next    string
	Error   string
	Success string
}

func (p loginPage) SignUp() bool {
	return p.Mode == modeSignUp
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, page loginPage) {
	page.layout = s.layout(RouteLogin)
	if page.Mode != modeSignUp {
		page.Mode = ""
	}
	page.Next = safeNext(page.Next, "")
	s.render(w, status, pageLogin, page)
}

// LoginPageHandler displays the sign-in form (GET /login, ?mode=signup for sign up)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.renderLogin(w, r, http.StatusOK, loginPage{
			Mode:  q.Get("mode"),
			Email: q.Get("email"),
			Next:  q.Get("next"),
		})
	}
}

// LoginSubmissionHandler signs in or signs up through the Auth Context
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		page := loginPage{
			Mode:  r.FormValue("mode"),
			Email: strings.TrimSpace(r.FormValue("email")),
			Next:  r.FormValue("next"),
		}
		password := r.FormValue("password")

		if page.Mode == modeSignUp {
			s.signUp(w, r, page, password)
			return
		}

		res, err := s.auth.SignIn(r.Context(), page.Email, password)
		if err != nil {
			log.Err(err).Msg("sign in failed")
			page.Error = userMessage(err, msgUnexpected)
			s.renderLogin(w, r, http.StatusBadGateway, page)
			return
		}
		if res.AuthErr != nil {
			page.Error = res.AuthErr.Message
			s.renderLogin(w, r, http.StatusUnauthorized, page)
			return
		}

		log.Info().Str("user_id", res.User.ID).Msg("signed in")
		redirectSuccess(w, r, safeNext(page.Next, RouteAfterLogin))
	}
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request, page loginPage, password string) {
	res, err := s.auth.SignUp(r.Context(), page.Email, password)
	if err != nil {
		log.Err(err).Msg("sign up failed")
		page.Error = userMessage(err, msgUnexpected)
		s.renderLogin(w, r, http.StatusBadGateway, page)
		return
	}
	if res.AuthErr != nil {
		page.Error = res.AuthErr.Message
		s.renderLogin(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	switch res.Outcome {
	case authctx.OutcomeAuthenticated:
		log.Info().Str("user_id", res.User.ID).Msg("signed up and signed in")
		redirectSuccess(w, r, safeNext(page.Next, RouteAfterLogin))
	default:
		// Switch the form back to sign-in so the user can log in after confirming.
		page.Mode = ""
		page.Success = msgAccountCreated
		s.renderLogin(w, r, http.StatusOK, page)
	}
}

// LogoutHandler signs out. The local user is cleared even if the provider
// could not be reached.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.SignOut(r.Context()); err != nil {
			log.Warn().Err(err).Msg("sign out did not reach the identity provider")
		}
		redirectSuccess(w, r, RouteIndex)
	}
}

// safeNext only allows local absolute paths so "next" cannot send the user
// to another site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.HasPrefix(next, "/\\") || strings.HasPrefix(next, RouteLogin) {
		return fallback
	}
	return next
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

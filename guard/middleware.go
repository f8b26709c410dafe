package guard

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/swingsense/authctx"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
)

// StateSource is what the HTTP gate reads from the Auth Context.
type StateSource interface {
	State() authctx.State
	Ready() <-chan struct{}
}

type contextKey struct{}

func WithIdentity(ctx context.Context, user session.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// IdentityFromContext returns the user a guarded handler is serving.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	user, ok := ctx.Value(contextKey{}).(session.Identity)
	return user, ok
}

// RetryAfter is sent with 503 answers while the session check is pending.
const RetryAfter = time.Second

// Middleware protects a page. While the session check is pending it waits up
// to wait for it, then answers 503 without content. Without a user it
// redirects to loginPath with the requested page in "next".
func Middleware(src StateSource, loginPath string, wait time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			state := src.State()
			if Evaluate(state) == StatusChecking && wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-src.Ready():
				case <-timer.C:
				case <-r.Context().Done():
				}
				timer.Stop()
				state = src.State()
			}

			switch Evaluate(state) {
			case StatusChecking:
				w.Header().Set("Retry-After", strconv.Itoa(int(RetryAfter.Seconds())))
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusServiceUnavailable)
			case StatusRedirecting:
				log.Debug().Str("path", r.URL.Path).Msg("no user, redirecting to sign in")
				redirect(w, r, LoginURL(loginPath, returnPath(r)))
			case StatusAuthorized:
				next(w, r.WithContext(WithIdentity(r.Context(), *state.User)))
			}
		}
	}
}

// LoginURL builds the sign-in location that returns to next afterwards.
func LoginURL(loginPath, next string) string {
	if next == "" || next == loginPath {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(next)
}

// returnPath is where to come back to after signing in. Form posts go back to
// the page rather than replaying the submission.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.RequestURI()
	}
	return r.URL.Path
}

// redirect is htmx aware: htmx requests get HX-Redirect instead of a 303.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	w.Header().Set("Cache-Control", "no-store")
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

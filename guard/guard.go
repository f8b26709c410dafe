// Package guard gates protected pages on the Auth Context: nothing protected
// is rendered while the session check is pending or when nobody is signed in.
package guard

import (
	"sync"

	"github.com/jrsteele09/swingsense/authctx"
)

type Status int

const (
	StatusChecking Status = iota
	StatusAuthorized
	StatusRedirecting
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusAuthorized:
		return "authorized"
	case StatusRedirecting:
		return "redirecting"
	}
	return "unknown"
}

// Evaluate maps an auth state onto what a protected page may do.
func Evaluate(state authctx.State) Status {
	switch {
	case state.Loading:
		return StatusChecking
	case state.User != nil:
		return StatusAuthorized
	default:
		return StatusRedirecting
	}
}

// Guard follows the Auth Context for one protected view and calls onRedirect
// every time the view moves into StatusRedirecting.
type Guard struct {
	watcher    authctx.Watcher
	onRedirect func()

	mu      sync.Mutex
	status  Status
	mounted bool
	cancel  func()
}

func New(watcher authctx.Watcher, onRedirect func()) *Guard {
	if onRedirect == nil {
		onRedirect = func() {}
	}
	return &Guard{watcher: watcher, onRedirect: onRedirect, status: StatusChecking}
}

func (g *Guard) Mount() {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.status = StatusChecking
	g.mu.Unlock()

	cancel := g.watcher.Watch(g.update)

	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()

	g.update(g.watcher.State())
}

func (g *Guard) Unmount() {
	g.mu.Lock()
	g.mounted = false
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Guard) update(state authctx.State) {
	next := Evaluate(state)

	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	entering := next == StatusRedirecting && g.status != StatusRedirecting
	g.status = next
	g.mu.Unlock()

	if entering {
		g.onRedirect()
	}
}

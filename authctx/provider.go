// Package authctx mirrors the Session Source's idea of who is signed in so
// the rest of the process can read it without a round trip.
package authctx

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/internal/metrics"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
)

// State is the mirrored authentication state.
type State struct {
	User    *session.Identity // nil when nobody is signed in
	Loading bool              // true only during the initial session check
}

// Authenticated reports whether a user is present.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Result is the outcome of a sign-in. AuthErr carries expected failures such
// as a wrong password; it is never returned as an error.
type Result struct {
	User    *session.Identity
	AuthErr *session.AuthError
}

type Outcome int

const (
	OutcomeAuthenticated Outcome = iota + 1
	OutcomeConfirmationRequired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeConfirmationRequired:
		return "confirmation_required"
	}
	return "unknown"
}

// SignUpResult is the outcome of a sign-up. Outcome is zero when AuthErr is set.
type SignUpResult struct {
	Outcome Outcome
	User    *session.Identity
	AuthErr *session.AuthError
}

// Watcher is notified after every state change.
type Watcher interface {
	State() State
	Watch(fn func(State)) (cancel func())
}

type Option func(*Provider)

func WithMetrics(recorder metrics.Recorder) Option {
	return func(p *Provider) {
		p.metrics = recorder
	}
}

// Provider is the process-wide Auth Context.
type Provider struct {
	source  session.Source
	metrics metrics.Recorder

	mu          sync.Mutex
	state       State
	mounted     bool
	epoch       uint64 // bumped on Mount and Unmount
	applied     uint64 // number of notifications applied in this epoch
	lastSeq     uint64
	unsubscribe func()
	ready       chan struct{} // closed when the current mount's check finishes
	readyClosed bool

	notifyMu    sync.Mutex // serializes watcher notification
	watchMu     sync.Mutex
	watchers    map[int]func(State)
	nextWatcher int
}

var _ Watcher = (*Provider)(nil)

func New(source session.Source, opts ...Option) *Provider {
	p := &Provider{
		source:   source,
		metrics:  metrics.Nop{},
		state:    State{Loading: true},
		ready:    make(chan struct{}),
		watchers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount subscribes to session changes and performs the initial session check.
// A notification that arrives while the check is in flight wins over the
// check's result.
func (p *Provider) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return errors.New("auth context already mounted")
	}
	p.mounted = true
	p.epoch++
	epoch := p.epoch
	p.applied = 0
	p.state = State{Loading: true}
	if p.readyClosed {
		p.ready = make(chan struct{})
		p.readyClosed = false
	}
	p.mu.Unlock()

	// Subscribe before fetching so no change can fall between the two.
	unsubscribe := p.source.OnSessionChange(func(ev session.Event) {
		p.handleEvent(epoch, ev)
	})

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		unsubscribe()
		return nil
	}
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	p.notify()

	current, fetchErr := p.source.GetSession(ctx)
	if fetchErr != nil {
		log.Err(fetchErr).Msg("initial session check failed")
	}

	p.mu.Lock()
	if p.epoch != epoch || !p.mounted {
		p.mu.Unlock()
		return nil
	}
	if p.applied == 0 && fetchErr == nil {
		p.state.User = identityOf(current)
	}
	p.state.Loading = false
	if !p.readyClosed {
		close(p.ready)
		p.readyClosed = true
	}
	p.mu.Unlock()

	p.notify()

	if fetchErr != nil {
		return apperrors.Wrapf(fetchErr, "initial session check")
	}
	return nil
}

// Unmount deregisters the change listener. Nothing that completes afterwards
// changes the state. Calling it more than once is a no-op.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = false
	p.epoch++
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (p *Provider) handleEvent(epoch uint64, ev session.Event) {
	p.mu.Lock()
	if p.epoch != epoch || !p.mounted || ev.Seq <= p.lastSeq {
		p.mu.Unlock()
		return
	}
	p.lastSeq = ev.Seq
	p.applied++
	if ev.Type == session.EventSignedOut {
		p.state.User = nil
	} else {
		p.state.User = identityOf(ev.Session)
	}
	p.mu.Unlock()

	log.Debug().Str("event", string(ev.Type)).Uint64("seq", ev.Seq).Msg("session change applied")
	p.metrics.RecordAuthEvent(string(ev.Type))
	p.notify()
}

// mark captures the point an operation starts from, so its result can be
// dropped if anything newer happened before it completed.
type mark struct {
	epoch   uint64
	applied uint64
}

func (p *Provider) mark() (mark, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mark{epoch: p.epoch, applied: p.applied}, p.mounted
}

// applyIfCurrent sets the user when no notification or unmount happened since m.
func (p *Provider) applyIfCurrent(m mark, user *session.Identity) bool {
	p.mu.Lock()
	if !p.mounted || p.epoch != m.epoch || p.applied != m.applied {
		p.mu.Unlock()
		return false
	}
	p.state.User = user
	p.mu.Unlock()
	p.notify()
	return true
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (Result, error) {
	m, mounted := p.mark()
	if !mounted {
		return Result{}, apperrors.ErrNotMounted
	}

	s, err := p.source.SignIn(ctx, email, password)
	if err != nil {
		if authErr, ok := session.AsAuthError(err); ok {
			p.metrics.RecordAuthEvent("sign_in_rejected")
			return Result{AuthErr: authErr}, nil
		}
		return Result{}, apperrors.Wrapf(err, "sign in")
	}

	user := identityOf(s)
	if !p.applyIfCurrent(m, user) {
		log.Debug().Msg("sign-in result superseded")
	}
	return Result{User: user}, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	m, mounted := p.mark()
	if !mounted {
		return SignUpResult{}, apperrors.ErrNotMounted
	}

	res, err := p.source.SignUp(ctx, email, password)
	if err != nil {
		if authErr, ok := session.AsAuthError(err); ok {
			p.metrics.RecordAuthEvent("sign_up_rejected")
			return SignUpResult{AuthErr: authErr}, nil
		}
		return SignUpResult{}, apperrors.Wrapf(err, "sign up")
	}

	if res.Session == nil {
		p.metrics.RecordAuthEvent("sign_up_pending")
		user := res.User
		return SignUpResult{Outcome: OutcomeConfirmationRequired, User: &user}, nil
	}

	user := identityOf(res.Session)
	if !p.applyIfCurrent(m, user) {
		log.Debug().Msg("sign-up result superseded")
	}
	return SignUpResult{Outcome: OutcomeAuthenticated, User: user}, nil
}

// SignOut clears the local user even when the source fails; the source's
// error is still returned.
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.source.SignOut(ctx)

	p.mu.Lock()
	changed := p.mounted && p.state.User != nil
	if p.mounted {
		p.state.User = nil
	}
	p.mu.Unlock()
	if changed {
		p.notify()
	}

	if err != nil {
		return apperrors.Wrapf(err, "sign out")
	}
	return nil
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyState(p.state)
}

// Ready is closed once the current mount's initial session check has
// finished. Each Mount arms a new channel.
func (p *Provider) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Watch registers fn to be called after every state change. Calls are
// serialized; fn must not call Watch or the cancel function it returned.
func (p *Provider) Watch(fn func(State)) func() {
	p.watchMu.Lock()
	id := p.nextWatcher
	p.nextWatcher++
	p.watchers[id] = fn
	p.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.watchMu.Lock()
			delete(p.watchers, id)
			p.watchMu.Unlock()
		})
	}
}

func (p *Provider) notify() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	state := p.State()

	p.watchMu.Lock()
	fns := make([]func(State), 0, len(p.watchers))
	for id := 0; id < p.nextWatcher; id++ {
		if fn, ok := p.watchers[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.watchMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func identityOf(s *session.Session) *session.Identity {
	if s == nil {
		return nil
	}
	user := s.User
	return &user
}

func copyState(s State) State {
	if s.User != nil {
		user := *s.User
		s.User = &user
	}
	return s
}

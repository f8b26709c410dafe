package authctx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/swingsense/authctx"
	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
	"github.com/jrsteele09/swingsense/session/memsource"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "password123"
)

var (
	alice = session.Identity{ID: "alice", Email: "alice@example.com"}
	bob   = session.Identity{ID: "bob", Email: "bob@example.com"}
)

// stubSource lets a test hold GetSession and SignIn open and emit events in
// between.
type stubSource struct {
	events *session.Broadcaster

	getSession   *session.Session
	getErr       error
	getStarted   chan struct{}
	releaseGet   chan struct{}
	signIn       *session.Session
	signInErr    error
	signInStart  chan struct{}
	releaseIn    chan struct{}
	signOutErr   error
	signOutCalls int
}

func newStubSource() *stubSource {
	return &stubSource{events: session.NewBroadcaster()}
}

func (s *stubSource) GetSession(ctx context.Context) (*session.Session, error) {
	if s.getStarted != nil {
		close(s.getStarted)
	}
	if s.releaseGet != nil {
		<-s.releaseGet
	}
	return s.getSession.Clone(), s.getErr
}

func (s *stubSource) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if s.signInStart != nil {
		close(s.signInStart)
	}
	if s.releaseIn != nil {
		<-s.releaseIn
	}
	return s.signIn.Clone(), s.signInErr
}

func (s *stubSource) SignUp(ctx context.Context, email, password string) (session.SignUpResult, error) {
	return session.SignUpResult{}, apperrors.ErrUnsupported
}

func (s *stubSource) SignOut(ctx context.Context) error {
	s.signOutCalls++
	return s.signOutErr
}

func (s *stubSource) OnSessionChange(fn func(session.Event)) func() {
	return s.events.Subscribe(fn)
}

func sessionFor(id session.Identity) *session.Session {
	return &session.Session{AccessToken: "token-" + id.ID, User: id}
}

func newMemSource(t *testing.T, opts ...memsource.Option) *memsource.Source {
	t.Helper()
	src := memsource.New(opts...)
	_, err := src.SignUp(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, src.Confirm(testEmail))
	return src
}

func TestProvider_Mount(t *testing.T) {
	ctx := context.Background()

	t.Run("loading until the initial check completes", func(t *testing.T) {
		src := newStubSource()
		src.getSession = sessionFor(alice)
		src.getStarted = make(chan struct{})
		src.releaseGet = make(chan struct{})

		p := authctx.New(src)
		require.True(t, p.State().Loading)

		done := make(chan error)
		go func() { done <- p.Mount(ctx) }()
		<-src.getStarted

		require.True(t, p.State().Loading)
		select {
		case <-p.Ready():
			t.Fatal("ready before the initial check finished")
		default:
		}

		close(src.releaseGet)
		require.NoError(t, <-done)

		<-p.Ready()
		state := p.State()
		require.False(t, state.Loading)
		require.Equal(t, &alice, state.User)
	})

	t.Run("event during the initial check wins", func(t *testing.T) {
		src := newStubSource()
		src.getSession = sessionFor(alice)
		src.getStarted = make(chan struct{})
		src.releaseGet = make(chan struct{})

		p := authctx.New(src)
		done := make(chan error)
		go func() { done <- p.Mount(ctx) }()
		<-src.getStarted

		src.events.Emit(session.EventSignedIn, sessionFor(bob))
		close(src.releaseGet)
		require.NoError(t, <-done)

		require.Equal(t, &bob, p.State().User)
	})

	t.Run("sign-out event during the initial check wins", func(t *testing.T) {
		src := newStubSource()
		src.getSession = sessionFor(alice)
		src.getStarted = make(chan struct{})
		src.releaseGet = make(chan struct{})

		p := authctx.New(src)
		done := make(chan error)
		go func() { done <- p.Mount(ctx) }()
		<-src.getStarted

		src.events.Emit(session.EventSignedOut, nil)
		close(src.releaseGet)
		require.NoError(t, <-done)

		require.Nil(t, p.State().User)
	})

	t.Run("failed check leaves the user absent", func(t *testing.T) {
		src := newStubSource()
		src.getErr = errors.New("provider down")

		p := authctx.New(src)
		require.Error(t, p.Mount(ctx))
		<-p.Ready()
		require.Equal(t, authctx.State{}, p.State())
	})

	t.Run("mounting twice fails", func(t *testing.T) {
		p := authctx.New(newStubSource())
		require.NoError(t, p.Mount(ctx))
		require.Error(t, p.Mount(ctx))
	})
}

func TestProvider_FollowsEvents(t *testing.T) {
	src := newStubSource()
	p := authctx.New(src)
	require.NoError(t, p.Mount(context.Background()))

	src.events.Emit(session.EventSignedIn, sessionFor(alice))
	require.Equal(t, &alice, p.State().User)

	src.events.Emit(session.EventTokenRefreshed, sessionFor(alice))
	src.events.Emit(session.EventUserUpdated, sessionFor(bob))
	require.Equal(t, &bob, p.State().User)

	src.events.Emit(session.EventSignedOut, nil)
	require.Nil(t, p.State().User)
}

func TestProvider_Unmount(t *testing.T) {
	ctx := context.Background()

	t.Run("deregisters the listener", func(t *testing.T) {
		src := newStubSource()
		p := authctx.New(src)
		require.NoError(t, p.Mount(ctx))
		require.Equal(t, 1, src.events.Len())

		p.Unmount()
		p.Unmount()
		require.Equal(t, 0, src.events.Len())

		src.events.Emit(session.EventSignedIn, sessionFor(alice))
		require.Nil(t, p.State().User)
	})

	t.Run("drops a sign-in that completes afterwards", func(t *testing.T) {
		src := newStubSource()
		src.signIn = sessionFor(alice)
		src.signInStart = make(chan struct{})
		src.releaseIn = make(chan struct{})

		p := authctx.New(src)
		require.NoError(t, p.Mount(ctx))

		type outcome struct {
			res authctx.Result
			err error
		}
		done := make(chan outcome)
		go func() {
			res, err := p.SignIn(ctx, alice.Email, testPassword)
			done <- outcome{res, err}
		}()
		<-src.signInStart

		p.Unmount()
		close(src.releaseIn)
		out := <-done

		require.NoError(t, out.err)
		require.Nil(t, p.State().User)
	})

	t.Run("drops an initial check that completes afterwards", func(t *testing.T) {
		src := newStubSource()
		src.getSession = sessionFor(alice)
		src.getStarted = make(chan struct{})
		src.releaseGet = make(chan struct{})

		p := authctx.New(src)
		done := make(chan error)
		go func() { done <- p.Mount(ctx) }()
		<-src.getStarted

		p.Unmount()
		close(src.releaseGet)
		require.NoError(t, <-done)
		require.Nil(t, p.State().User)
	})
}

func TestProvider_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := authctx.New(newMemSource(t))
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignIn(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Nil(t, res.AuthErr)
		require.Equal(t, testEmail, res.User.Email)
		require.Equal(t, res.User, p.State().User)
	})

	t.Run("wrong password keeps the user absent", func(t *testing.T) {
		p := authctx.New(newMemSource(t))
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignIn(ctx, testEmail, "wrong-password")
		require.NoError(t, err)
		require.NotNil(t, res.AuthErr)
		require.Equal(t, "Invalid login credentials", res.AuthErr.Message)
		require.Nil(t, p.State().User)
	})

	t.Run("transport failure is an error", func(t *testing.T) {
		src := newStubSource()
		src.signInErr = errors.New("dial tcp: connection refused")
		p := authctx.New(src)
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignIn(ctx, alice.Email, testPassword)
		require.Error(t, err)
		require.Nil(t, res.AuthErr)
	})

	t.Run("newer event supersedes the result", func(t *testing.T) {
		src := newStubSource()
		src.signIn = sessionFor(alice)
		src.signInStart = make(chan struct{})
		src.releaseIn = make(chan struct{})

		p := authctx.New(src)
		require.NoError(t, p.Mount(ctx))

		done := make(chan struct{})
		go func() {
			_, _ = p.SignIn(ctx, alice.Email, testPassword)
			close(done)
		}()
		<-src.signInStart

		src.events.Emit(session.EventSignedOut, nil)
		close(src.releaseIn)
		<-done

		require.Nil(t, p.State().User)
	})

	t.Run("requires a mounted provider", func(t *testing.T) {
		p := authctx.New(newStubSource())
		_, err := p.SignIn(ctx, alice.Email, testPassword)
		require.ErrorIs(t, err, apperrors.ErrNotMounted)
	})
}

func TestProvider_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmation required", func(t *testing.T) {
		p := authctx.New(memsource.New())
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, authctx.OutcomeConfirmationRequired, res.Outcome)
		require.Equal(t, testEmail, res.User.Email)
		require.Nil(t, p.State().User)
	})

	t.Run("authenticated", func(t *testing.T) {
		p := authctx.New(memsource.New(memsource.WithAutoConfirm(true)))
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, authctx.OutcomeAuthenticated, res.Outcome)
		require.Equal(t, res.User, p.State().User)
	})

	t.Run("existing account", func(t *testing.T) {
		p := authctx.New(newMemSource(t))
		require.NoError(t, p.Mount(ctx))

		res, err := p.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.NotNil(t, res.AuthErr)
		require.Equal(t, "User already registered", res.AuthErr.Message)
	})
}

func TestProvider_SignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the user", func(t *testing.T) {
		p := authctx.New(newMemSource(t))
		require.NoError(t, p.Mount(ctx))
		_, err := p.SignIn(ctx, testEmail, testPassword)
		require.NoError(t, err)

		require.NoError(t, p.SignOut(ctx))
		require.Nil(t, p.State().User)
	})

	t.Run("clears the user when the source fails", func(t *testing.T) {
		src := newStubSource()
		src.signOutErr = errors.New("network unreachable")
		p := authctx.New(src)
		require.NoError(t, p.Mount(ctx))
		src.events.Emit(session.EventSignedIn, sessionFor(alice))
		require.NotNil(t, p.State().User)

		require.Error(t, p.SignOut(ctx))
		require.Equal(t, 1, src.signOutCalls)
		require.Nil(t, p.State().User)
	})
}

func TestProvider_Watch(t *testing.T) {
	src := newStubSource()
	p := authctx.New(src)

	var seen []authctx.State
	cancel := p.Watch(func(s authctx.State) { seen = append(seen, s) })

	require.NoError(t, p.Mount(context.Background()))
	src.events.Emit(session.EventSignedIn, sessionFor(alice))

	require.Equal(t, []authctx.State{
		{Loading: true},
		{Loading: false},
		{User: &alice},
	}, seen)

	cancel()
	cancel()
	src.events.Emit(session.EventSignedOut, nil)
	require.Len(t, seen, 3)
}

func TestProvider_ReadyTimeout(t *testing.T) {
	src := newStubSource()
	src.getStarted = make(chan struct{})
	src.releaseGet = make(chan struct{})
	p := authctx.New(src)

	go func() { _ = p.Mount(context.Background()) }()
	<-src.getStarted

	select {
	case <-p.Ready():
		t.Fatal("ready while the session check is pending")
	case <-time.After(20 * time.Millisecond):
	}
	close(src.releaseGet)
	<-p.Ready()
}

func TestProvider_ReadyRearmedOnRemount(t *testing.T) {
	src := newStubSource()
	src.getSession = sessionFor(alice)
	p := authctx.New(src)

	require.NoError(t, p.Mount(context.Background()))
	<-p.Ready()
	p.Unmount()

	src.getStarted = make(chan struct{})
	src.releaseGet = make(chan struct{})
	done := make(chan error)
	go func() { done <- p.Mount(context.Background()) }()
	<-src.getStarted

	require.True(t, p.State().Loading)
	select {
	case <-p.Ready():
		t.Fatal("ready while the second session check is pending")
	default:
	}

	close(src.releaseGet)
	require.NoError(t, <-done)
	<-p.Ready()
	require.False(t, p.State().Loading)
	require.Equal(t, &alice, p.State().User)
}

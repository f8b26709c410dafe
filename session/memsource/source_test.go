package memsource_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
	"github.com/jrsteele09/swingsense/session"
	"github.com/jrsteele09/swingsense/session/memsource"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "password123"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSource(t *testing.T, opts ...memsource.Option) (*memsource.Source, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	opts = append([]memsource.Option{
		memsource.WithClock(clk.Now),
		memsource.WithTokenTTL(10 * time.Minute),
		memsource.WithRefreshMargin(time.Minute),
	}, opts...)
	return memsource.New(opts...), clk
}

func registerVerified(t *testing.T, src *memsource.Source) {
	t.Helper()
	res, err := src.SignUp(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, res.ConfirmationRequired)
	require.NoError(t, src.Confirm(testEmail))
}

func TestSource_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmation required by default", func(t *testing.T) {
		src, _ := newTestSource(t)
		res, err := src.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.True(t, res.ConfirmationRequired)
		require.Nil(t, res.Session)
		require.NotEmpty(t, res.User.ID)

		s, err := src.GetSession(ctx)
		require.NoError(t, err)
		require.Nil(t, s)
	})

	t.Run("auto confirm signs the user in", func(t *testing.T) {
		src, _ := newTestSource(t, memsource.WithAutoConfirm(true))
		var events []session.EventType
		defer src.OnSessionChange(func(ev session.Event) { events = append(events, ev.Type) })()

		res, err := src.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.False(t, res.ConfirmationRequired)
		require.NotNil(t, res.Session)
		require.Equal(t, testEmail, res.Session.User.Email)
		require.Equal(t, []session.EventType{session.EventSignedIn}, events)
	})

	t.Run("duplicate email", func(t *testing.T) {
		src, _ := newTestSource(t)
		_, err := src.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)

		_, err = src.SignUp(ctx, "John.Doe@example.com", testPassword)
		authErr, ok := session.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, session.CodeUserExists, authErr.Code)
		require.Equal(t, "User already registered", authErr.Message)
	})

	t.Run("weak password", func(t *testing.T) {
		src, _ := newTestSource(t)
		_, err := src.SignUp(ctx, testEmail, "123")
		authErr, ok := session.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, session.CodeWeakPassword, authErr.Code)
	})
}

func TestSource_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified account", func(t *testing.T) {
		src, _ := newTestSource(t)
		_, err := src.SignUp(ctx, testEmail, testPassword)
		require.NoError(t, err)

		_, err = src.SignIn(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, apperrors.ErrUserNotVerified)
		authErr, ok := session.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, "Email not confirmed", authErr.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		src, _ := newTestSource(t)
		registerVerified(t, src)

		_, err := src.SignIn(ctx, testEmail, "wrong-password")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		authErr, ok := session.AsAuthError(err)
		require.True(t, ok)
		require.Equal(t, "Invalid login credentials", authErr.Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		src, _ := newTestSource(t)
		_, err := src.SignIn(ctx, "nobody@example.com", testPassword)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("success emits signed in", func(t *testing.T) {
		src, _ := newTestSource(t)
		registerVerified(t, src)

		var events []session.Event
		defer src.OnSessionChange(func(ev session.Event) { events = append(events, ev) })()

		s, err := src.SignIn(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.NotEmpty(t, s.AccessToken)
		require.NotEmpty(t, s.RefreshToken)
		require.Equal(t, testEmail, s.User.Email)

		require.Len(t, events, 1)
		require.Equal(t, session.EventSignedIn, events[0].Type)
		require.Equal(t, s.AccessToken, events[0].Session.AccessToken)

		identity, err := src.VerifyAccessToken(s.AccessToken)
		require.NoError(t, err)
		require.Equal(t, s.User, identity)
	})
}

func TestSource_GetSessionRefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	src, clk := newTestSource(t)
	registerVerified(t, src)

	first, err := src.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	var events []session.EventType
	defer src.OnSessionChange(func(ev session.Event) { events = append(events, ev.Type) })()

	clk.Advance(5 * time.Minute)
	same, err := src.GetSession(ctx)
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, same.AccessToken)
	require.Empty(t, events)

	clk.Advance(4*time.Minute + 30*time.Second)
	refreshed, err := src.GetSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, refreshed.AccessToken)
	require.True(t, refreshed.Valid(clk.Now()))
	require.Equal(t, []session.EventType{session.EventTokenRefreshed}, events)
}

func TestSource_SignOutAndExpire(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestSource(t)
	registerVerified(t, src)

	_, err := src.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	var events []session.EventType
	defer src.OnSessionChange(func(ev session.Event) { events = append(events, ev.Type) })()

	src.Expire()
	s, err := src.GetSession(ctx)
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = src.Refresh(ctx)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = src.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, src.SignOut(ctx))

	require.Equal(t, []session.EventType{
		session.EventSignedOut,
		session.EventSignedIn,
		session.EventSignedOut,
	}, events)
}

func TestSource_VerifyAccessTokenRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestSource(t)
	registerVerified(t, src)
	s, err := src.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	other, _ := newTestSource(t, memsource.WithSecret("another-secret"))
	_, err = other.VerifyAccessToken(s.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

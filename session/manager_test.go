package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/credential"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/jrsteele09/go-auth-client/store/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "jane@example.com"
	testPassword = "Password123"
)

var testUser = &remote.User{ID: 42, Email: testEmail}

// fakeRemote is the authentication service as seen by the session.
type fakeRemote struct {
	mu         sync.Mutex
	loginErr   error
	signupErr  error
	whoamiErr  error
	refreshErr error
	authResp   remote.AuthResponse
	whoamiHits int
	refreshes  int
}

func (f *fakeRemote) Login(_ context.Context, req remote.LoginRequest) (*remote.AuthResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	resp := f.authResp
	return &resp, nil
}

func (f *fakeRemote) Signup(_ context.Context, req remote.SignupRequest) (*remote.AuthResponse, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	resp := f.authResp
	return &resp, nil
}

func (f *fakeRemote) WhoAmI(context.Context) (*remote.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whoamiHits++
	if f.whoamiErr != nil {
		return nil, f.whoamiErr
	}
	u := *testUser
	return &u, nil
}

func (f *fakeRemote) Refresh(context.Context, string) (*remote.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &remote.AuthResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900}, nil
}

type testFixture struct {
	repo       *repofake.FakeKVRepo
	store      *store.SessionStore
	remote     *fakeRemote
	manager    *session.Manager
	navigation []string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		repo: repofake.NewFakeKVRepo(),
		remote: &fakeRemote{authResp: remote.AuthResponse{
			AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 900,
		}},
	}
	f.store = store.NewSessionStore(f.repo)
	coordinator := refresh.NewCoordinator(f.store, f.remote)
	f.manager = session.NewManager(f.store, f.remote, coordinator,
		session.WithNavigator(session.NavigatorFunc(func(route string) {
			f.navigation = append(f.navigation, route)
		})),
	)
	coordinator.SetHooks(f.manager.RefreshHooks())
	return f
}

func (f *testFixture) requireCleared(t *testing.T) {
	t.Helper()
	for _, k := range f.store.Keys() {
		require.False(t, f.repo.Has(k), "key %s survived", k)
	}
}

func (f *testFixture) seedCredential(t *testing.T, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), credential.Credential{
		AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: expiresAt,
	}))
}

func TestManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores credential and user", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.manager.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, "access-1", resp.AccessToken)

		require.True(t, f.manager.IsAuthenticated(ctx))
		require.Equal(t, session.Authenticated, f.manager.State().Status)
		require.Equal(t, testUser, f.manager.User())
		require.False(t, f.manager.Loading())
		require.Equal(t, []string{
			"set " + store.AccessTokenKey,
			"set " + store.RefreshTokenKey,
			"set " + store.ExpiryKey,
		}, f.repo.Ops())
	})

	for _, tc := range []struct {
		name  string
		setup func(*fakeRemote)
	}{
		{name: "login rejected", setup: func(r *fakeRemote) { r.loginErr = errors.New("bad password") }},
		{name: "whoami fails", setup: func(r *fakeRemote) { r.whoamiErr = errors.New("boom") }},
		{name: "negative lifetime", setup: func(r *fakeRemote) { r.authResp.ExpiresIn = -5 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			tc.setup(f.remote)

			_, err := f.manager.Login(ctx, testEmail, testPassword)
			require.Error(t, err)
			f.requireCleared(t)
			require.Equal(t, session.Anonymous, f.manager.State().Status)
			require.Nil(t, f.manager.User())
		})
	}

	t.Run("store write failure never leaves a partial credential", func(t *testing.T) {
		f := setupTestFixture(t)
		f.repo.FailSet(store.RefreshTokenKey, errors.New("quota"))
		_, err := f.manager.Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)
		f.requireCleared(t)
	})
}

func TestManager_Register(t *testing.T) {
	ctx := context.Background()
	req := remote.SignupRequest{Email: testEmail, Password: testPassword, Name: "Jane"}

	t.Run("user from response", func(t *testing.T) {
		f := setupTestFixture(t)
		f.remote.authResp.User = &remote.User{ID: 7, Email: testEmail}

		_, err := f.manager.Register(ctx, req)
		require.NoError(t, err)
		require.Equal(t, int64(7), f.manager.User().ID)
		require.Zero(t, f.remote.whoamiHits)
	})

	t.Run("user fetched when response omits it", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Register(ctx, req)
		require.NoError(t, err)
		require.Equal(t, testUser, f.manager.User())
		require.Equal(t, 1, f.remote.whoamiHits)
	})

	t.Run("failure clears", func(t *testing.T) {
		f := setupTestFixture(t)
		f.remote.signupErr = errors.New("email taken")
		_, err := f.manager.Register(ctx, req)
		require.EqualError(t, err, "email taken")
		f.requireCleared(t)
	})
}

func TestManager_LogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	require.NoError(t, f.manager.Logout(ctx))
	require.Equal(t, session.State{Status: session.Anonymous}, f.manager.State())

	_, err := f.manager.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.manager.Logout(ctx))
	require.NoError(t, f.manager.Logout(ctx))
	require.Equal(t, session.State{Status: session.Anonymous}, f.manager.State())
	require.False(t, f.manager.IsAuthenticated(ctx))
	f.requireCleared(t)
	require.Equal(t, []string{"/login", "/login", "/login"}, f.navigation)
}

func TestManager_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.manager.Initialize(ctx))
		require.Equal(t, session.Anonymous, f.manager.State().Status)
		require.Zero(t, f.remote.whoamiHits)
	})

	t.Run("stored credential validated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedCredential(t, time.Now().Add(time.Hour))
		require.NoError(t, f.manager.Initialize(ctx))
		require.Equal(t, session.Authenticated, f.manager.State().Status)
		require.Equal(t, testUser, f.manager.User())
	})

	t.Run("validation failure clears and surfaces", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedCredential(t, time.Now().Add(time.Hour))
		f.remote.whoamiErr = errors.New("server down")

		err := f.manager.Initialize(ctx)
		require.EqualError(t, err, "server down")
		require.Equal(t, session.Anonymous, f.manager.State().Status)
		f.requireCleared(t)
	})
}

func TestManager_IsAuthenticatedIgnoresLocalExpiry(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.seedCredential(t, time.Now().Add(-time.Hour))

	require.True(t, f.manager.IsAuthenticated(ctx))
	require.True(t, f.manager.TokenExpired(ctx))
}

func TestManager_RefreshSession(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op when anonymous", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.manager.RefreshSession(ctx))
		require.Zero(t, f.remote.refreshes)
	})

	t.Run("renews credential and user", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)

		require.NoError(t, f.manager.RefreshSession(ctx))
		require.Equal(t, 1, f.remote.refreshes)
		require.Equal(t, 2, f.remote.whoamiHits)
		require.Equal(t, session.Authenticated, f.manager.State().Status)

		c, err := f.store.Credential(ctx)
		require.NoError(t, err)
		require.Equal(t, "access-2", c.AccessToken)
		require.Equal(t, "refresh-2", c.RefreshToken)
	})

	t.Run("failure expires the session once", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)
		f.remote.refreshErr = errors.New("refresh token revoked")

		var seen []session.Status
		unsubscribe := f.manager.OnLogout(func() {
			seen = append(seen, f.manager.State().Status)
		})
		defer unsubscribe()

		err = f.manager.RefreshSession(ctx)
		require.ErrorIs(t, err, autherrors.ErrRefreshFailure)
		require.Equal(t, []session.Status{session.Expired}, seen)
		require.Equal(t, session.Anonymous, f.manager.State().Status)
		require.Equal(t, []string{"/login"}, f.navigation)
		f.requireCleared(t)
	})
}

func TestManager_OnLogoutUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, err := f.manager.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	f.remote.refreshErr = errors.New("revoked")

	calls := 0
	unsubscribe := f.manager.OnLogout(func() { calls++ })
	unsubscribe()

	require.Error(t, f.manager.RefreshSession(ctx))
	require.Zero(t, calls)
}

func TestManager_RenewIfExpiring(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, err := f.manager.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	renewed, err := f.manager.RenewIfExpiring(ctx, time.Minute)
	require.NoError(t, err)
	require.False(t, renewed)

	renewed, err = f.manager.RenewIfExpiring(ctx, time.Hour)
	require.NoError(t, err)
	require.True(t, renewed)
	require.Equal(t, 1, f.remote.refreshes)
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "anonymous", session.Anonymous.String())
	require.Equal(t, "authenticated", session.Authenticated.String())
	require.Equal(t, "refreshing", session.Refreshing.String())
	require.Equal(t, "expired", session.Expired.String())
}

func TestManager_RefreshHooksRestorePreviousStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous stays anonymous", func(t *testing.T) {
		f := setupTestFixture(t)
		hooks := f.manager.RefreshHooks()
		hooks.OnStart()
		require.Equal(t, session.Refreshing, f.manager.State().Status)
		hooks.OnSuccess(credential.Credential{AccessToken: "access-2"})
		require.Equal(t, session.Anonymous, f.manager.State().Status)
	})

	t.Run("authenticated keeps its user", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.manager.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)

		hooks := f.manager.RefreshHooks()
		hooks.OnStart()
		hooks.OnSuccess(credential.Credential{AccessToken: "access-2"})
		require.Equal(t, session.Authenticated, f.manager.State().Status)
		require.NotNil(t, f.manager.User())
	})
}

func TestManager_Discard(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, err := f.manager.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	var logouts int
	f.manager.OnLogout(func() { logouts++ })

	f.manager.Discard()
	require.Equal(t, session.Anonymous, f.manager.State().Status)
	require.Nil(t, f.manager.User())
	require.Zero(t, logouts)
	require.Empty(t, f.navigation)
}

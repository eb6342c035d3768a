// Package session is the authentication state consumed by routing and UI. It
// drives login, registration, logout and startup validation, and reacts to the
// refresh coordinator's transitions.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-auth-client/credential"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLoginRoute = "/login"

type Remote interface {
	Login(ctx context.Context, req remote.LoginRequest) (*remote.AuthResponse, error)
	Signup(ctx context.Context, req remote.SignupRequest) (*remote.AuthResponse, error)
	WhoAmI(ctx context.Context) (*remote.User, error)
}

type Store interface {
	HasCredential(ctx context.Context) bool
	Credential(ctx context.Context) (credential.Credential, error)
	Save(ctx context.Context, c credential.Credential) error
	Clear(ctx context.Context) error
}

type Refresher interface {
	AcquireFreshToken(ctx context.Context) (string, error)
}

type Manager struct {
	remote     Remote
	store      Store
	refresher  Refresher
	navigator  Navigator
	loginRoute string
	log        zerolog.Logger

	mu         sync.RWMutex
	state      State
	preRefresh Status
	listeners  map[int]func()
	nextID     int

	loading atomic.Int32
}

type Option func(*Manager)

func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		m.navigator = n
	}
}

func WithLoginRoute(route string) Option {
	return func(m *Manager) {
		m.loginRoute = route
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

func NewManager(store Store, r Remote, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		remote:     r,
		store:      store,
		refresher:  refresher,
		navigator:  NavigatorFunc(func(string) {}),
		loginRoute: defaultLoginRoute,
		log:        log.Logger,
		listeners:  make(map[int]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "session").Logger()
	return m
}

// RefreshHooks connects the manager to a refresh coordinator
func (m *Manager) RefreshHooks() refresh.Hooks {
	return refresh.Hooks{
		OnStart:   m.refreshStarted,
		OnSuccess: func(credential.Credential) { m.refreshSucceeded() },
		OnExpired: m.expire,
	}
}

// IsAuthenticated is a presence check on the stored access token. The stored
// expiry is deliberately not consulted.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.store.HasCredential(ctx)
}

// TokenExpired reports whether the stored access token is missing or past its
// local expiry.
func (m *Manager) TokenExpired(ctx context.Context) bool {
	c, err := m.store.Credential(ctx)
	return err != nil || !c.Present() || c.Expired()
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the authenticated identity, or nil
func (m *Manager) User() *remote.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.User == nil {
		return nil
	}
	return utils.Ptr(*m.state.User)
}

// Loading reports whether a login, register, logout or refresh is running
func (m *Manager) Loading() bool {
	return m.loading.Load() > 0
}

// OnLogout registers fn to run when the session is force-expired by a failed
// refresh. It returns a function that removes the listener.
func (m *Manager) OnLogout(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Login exchanges email and password for a credential, stores it and fetches
// the user identity. Any failure leaves the session anonymous and cleared.
func (m *Manager) Login(ctx context.Context, email, password string) (*remote.AuthResponse, error) {
	defer m.busy()()

	resp, err := m.remote.Login(ctx, remote.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	if err := m.persist(ctx, resp); err != nil {
		return nil, m.fail(ctx, err)
	}
	user, err := m.remote.WhoAmI(ctx)
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	m.setState(Authenticated, user)
	m.log.Info().Int64("user_id", user.ID).Msg("logged in")
	return resp, nil
}

// Register creates an account and logs straight into it. The identity comes
// from the response when present, otherwise from /auth/me.
func (m *Manager) Register(ctx context.Context, req remote.SignupRequest) (*remote.AuthResponse, error) {
	defer m.busy()()

	resp, err := m.remote.Signup(ctx, req)
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	if err := m.persist(ctx, resp); err != nil {
		return nil, m.fail(ctx, err)
	}
	user := resp.User
	if user == nil {
		if user, err = m.remote.WhoAmI(ctx); err != nil {
			return nil, m.fail(ctx, err)
		}
	}
	m.setState(Authenticated, user)
	m.log.Info().Int64("user_id", user.ID).Msg("registered")
	return resp, nil
}

// Logout clears the session and navigates to the login route. It is safe to
// call when already anonymous.
func (m *Manager) Logout(ctx context.Context) error {
	defer m.busy()()

	err := m.store.Clear(ctx)
	m.setState(Anonymous, nil)
	m.navigator.Navigate(m.loginRoute)
	return err
}

// Initialize runs once at startup. A stored credential is validated by
// fetching the current user; if that fails the session is cleared and the
// error returned.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.store.HasCredential(ctx) {
		m.setState(Anonymous, nil)
		return nil
	}

	defer m.busy()()
	user, err := m.remote.WhoAmI(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	m.setState(Authenticated, user)
	return nil
}

// RefreshSession renews the credential through the refresh coordinator and
// re-fetches the user. It does nothing unless the session is authenticated.
// While a refresh is already in flight it joins that flight.
func (m *Manager) RefreshSession(ctx context.Context) error {
	if !m.signedIn() {
		return nil
	}

	defer m.busy()()
	if _, err := m.refresher.AcquireFreshToken(ctx); err != nil {
		return m.fail(ctx, err)
	}
	user, err := m.remote.WhoAmI(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	m.setState(Authenticated, user)
	return nil
}

// RenewIfExpiring refreshes the session when the stored access token expires
// within leeway. It reports whether a refresh was attempted.
func (m *Manager) RenewIfExpiring(ctx context.Context, leeway time.Duration) (bool, error) {
	c, err := m.store.Credential(ctx)
	if err != nil || !c.Present() || !c.ExpiresWithin(leeway) {
		return false, nil
	}
	if !m.signedIn() {
		return false, nil
	}
	return true, m.RefreshSession(ctx)
}

func (m *Manager) signedIn() bool {
	status := m.State().Status
	return status == Authenticated || status == Refreshing
}

func (m *Manager) persist(ctx context.Context, resp *remote.AuthResponse) error {
	c, err := resp.Credential()
	if err != nil {
		return err
	}
	return m.store.Save(ctx, c)
}

// fail clears all session material, drops to Anonymous and returns err.
func (m *Manager) fail(ctx context.Context, err error) error {
	if clearErr := m.store.Clear(ctx); clearErr != nil {
		m.log.Err(clearErr).Msg("failed to clear session")
	}
	m.setState(Anonymous, nil)
	return err
}

func (m *Manager) setState(status Status, user *remote.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Status: status, User: user}
}

func (m *Manager) refreshStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preRefresh = m.state.Status
	m.state.Status = Refreshing
}

func (m *Manager) refreshSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != Refreshing {
		return
	}
	m.state.Status = m.preRefresh
}

// expire handles a failed refresh: the session is Expired while logout
// listeners run, then the login route is shown and the session is Anonymous.
func (m *Manager) expire(err error) {
	m.mu.Lock()
	m.state = State{Status: Expired}
	listeners := make([]func(), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	m.log.Info().Err(err).Msg("session expired")
	for _, fn := range listeners {
		fn()
	}
	m.navigator.Navigate(m.loginRoute)
	m.setState(Anonymous, nil)
}

// Discard drops the in-memory session after the persisted one was cleared
// outside the manager, e.g. because it could not be read. Listeners and
// navigation are not triggered.
func (m *Manager) Discard() {
	m.setState(Anonymous, nil)
	m.log.Warn().Msg("session discarded")
}

func (m *Manager) busy() func() {
	m.loading.Add(1)
	return func() {
		m.loading.Add(-1)
	}
}

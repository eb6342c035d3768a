// Package refresh coordinates credential refresh so that at most one refresh
// call is outstanding at a time. Callers that need a fresh token while a call is
// in flight queue behind it and all receive its outcome in the order they joined.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/credential"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CredentialStore is the subset of the session store the coordinator writes to.
type CredentialStore interface {
	RefreshToken(ctx context.Context) (string, error)
	Save(ctx context.Context, c credential.Credential) error
	Clear(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new credential pair
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*remote.AuthResponse, error)
}

// Hooks observe flight transitions. Each is called from the goroutine running the
// flight, before any caller is released.
type Hooks struct {
	OnStart   func()
	OnSuccess func(credential.Credential)
	// OnExpired runs exactly once per failed flight
	OnExpired func(error)
}

type flight struct {
	id      string
	started time.Time
	waiters []*waiter
}

type Coordinator struct {
	store   CredentialStore
	remote  Refresher
	hooks   Hooks
	metrics *Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	flight *flight // nil while idle
}

type Option func(*Coordinator)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

func WithHooks(h Hooks) Option {
	return func(c *Coordinator) {
		c.hooks = h
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(store CredentialStore, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		remote:  refresher,
		metrics: NewMetrics(nil),
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "refresh").Logger()
	return c
}

// SetHooks replaces the hooks. It must be called before the first flight.
func (c *Coordinator) SetHooks(h Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = h
}

func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// InFlight reports whether a refresh call is outstanding
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight != nil
}

// AcquireFreshToken returns a newly issued access token. If no refresh is in
// flight the caller starts one; otherwise it waits for the live flight. Every
// caller of one flight gets the same token or the same error. Errors wrap
// ErrRefreshFailure.
//
// The refresh call does not observe cancellation of ctx: other callers may be
// waiting on it.
func (c *Coordinator) AcquireFreshToken(ctx context.Context) (string, error) {
	w, fl, leader := c.join()
	if !leader {
		c.metrics.waiterJoined()
		c.log.Debug().Str("flight_id", fl.id).Int("position", w.seq).Msg("joined refresh in flight")
		return w.wait()
	}
	c.run(context.WithoutCancel(ctx), fl)
	return w.wait()
}

func (c *Coordinator) join() (*waiter, *flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flight != nil {
		w := newWaiter(len(c.flight.waiters))
		c.flight.waiters = append(c.flight.waiters, w)
		return w, c.flight, false
	}

	fl := &flight{id: uuid.New().String(), started: time.Now()}
	w := newWaiter(0)
	fl.waiters = append(fl.waiters, w)
	c.flight = fl
	return w, fl, true
}

// land returns the coordinator to idle and hands back the flight's queue.
// Nobody can join fl after this.
func (c *Coordinator) land(fl *flight) []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight == fl {
		c.flight = nil
	}
	return fl.waiters
}

func (c *Coordinator) run(ctx context.Context, fl *flight) {
	c.metrics.flightStarted()
	c.log.Debug().Str("flight_id", fl.id).Msg("refresh started")
	if c.hooks.OnStart != nil {
		c.hooks.OnStart()
	}

	cred, err := c.refresh(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", autherrors.ErrRefreshFailure, err)
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.log.Err(clearErr).Str("flight_id", fl.id).Msg("failed to clear session after refresh failure")
		}
	}

	waiters := c.land(fl)
	c.metrics.flightFinished(err, time.Since(fl.started))

	if err != nil {
		c.log.Warn().Err(err).Str("flight_id", fl.id).Int("waiters", len(waiters)).Msg("refresh failed, session expired")
		if c.hooks.OnExpired != nil {
			c.hooks.OnExpired(err)
		}
	} else {
		c.log.Debug().Str("flight_id", fl.id).Int("waiters", len(waiters)).Msg("refresh succeeded")
		if c.hooks.OnSuccess != nil {
			c.hooks.OnSuccess(cred)
		}
	}

	for i, w := range waiters {
		if !w.settle(i, cred.AccessToken, err) {
			c.log.Error().Str("flight_id", fl.id).Int("position", w.seq).Str("state", w.state.String()).Msg("waiter settled twice")
		}
	}
}

func (c *Coordinator) refresh(ctx context.Context) (cred credential.Credential, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()

	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		return credential.Credential{}, err
	}
	if refreshToken == "" {
		return credential.Credential{}, autherrors.ErrNoRefreshToken
	}

	resp, err := c.remote.Refresh(ctx, refreshToken)
	if err != nil {
		return credential.Credential{}, err
	}
	if cred, err = resp.Credential(); err != nil {
		return credential.Credential{}, err
	}
	if err := c.store.Save(ctx, cred); err != nil {
		return credential.Credential{}, err
	}
	return cred, nil
}

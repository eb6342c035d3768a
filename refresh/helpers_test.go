package refresh_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/credential"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/jrsteele09/go-auth-client/store/repofake"
	"github.com/stretchr/testify/require"
)

// fakeRefresher blocks each call on gate (when set) and then returns resp or err.
type fakeRefresher struct {
	gate  chan struct{}
	resp  *remote.AuthResponse
	err   error
	calls atomic.Int32

	mu     sync.Mutex
	tokens []string
	ctxErr []error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*remote.AuthResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.tokens = append(f.tokens, refreshToken)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.ctxErr = append(f.ctxErr, ctx.Err())
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeRefresher) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newAuthResponse(access, refresh string) *remote.AuthResponse {
	return &remote.AuthResponse{AccessToken: access, RefreshToken: refresh, ExpiresIn: 900, RefreshExpiresIn: 3600}
}

type fixture struct {
	repo  *repofake.FakeKVRepo
	store *store.SessionStore
}

func newFixture(t *testing.T, refreshToken string) *fixture {
	t.Helper()

	repo := repofake.NewFakeKVRepo()
	s := store.NewSessionStore(repo)
	if refreshToken != "" {
		require.NoError(t, s.Save(context.Background(), credential.Credential{
			AccessToken:  "stale-access",
			RefreshToken: refreshToken,
			ExpiresAt:    time.Now().Add(-time.Minute),
		}))
	}
	return &fixture{repo: repo, store: s}
}

func (f *fixture) requireCleared(t *testing.T) {
	t.Helper()
	for _, k := range f.store.Keys() {
		require.False(t, f.repo.Has(k), "key %s survived", k)
	}
}

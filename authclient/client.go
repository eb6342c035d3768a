// Package authclient assembles the session store, request pipeline, remote
// auth client, refresh coordinator and session manager into one client.
package authclient

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/pipeline"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/jrsteele09/go-auth-client/store/redisrepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config is the subset of configuration the client reads
type Config interface {
	config.ClientConfig
	config.StoreConfig
}

type Client struct {
	store       *store.SessionStore
	pipeline    *pipeline.Pipeline
	remote      *remote.Client
	coordinator *refresh.Coordinator
	session     *session.Manager
	metrics     *refresh.Metrics
	closeRepo   func() error
}

type options struct {
	repo       store.Repo
	doer       pipeline.Doer
	navigator  session.Navigator
	registerer prometheus.Registerer
	logger     zerolog.Logger
	pipeline   []pipeline.Option
}

type Option func(*options)

// WithRepo overrides the backend selected by STORE_BACKEND
func WithRepo(repo store.Repo) Option {
	return func(o *options) { o.repo = repo }
}

func WithDoer(d pipeline.Doer) Option {
	return func(o *options) { o.doer = d }
}

func WithNavigator(n session.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithRegisterer registers the refresh metrics. Nil leaves them unregistered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPipelineOptions passes extra options, such as interceptors, to the pipeline
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) { o.pipeline = append(o.pipeline, opts...) }
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{closeRepo: func() error { return nil }}
	repo := o.repo
	if repo == nil {
		var err error
		if repo, err = c.openRepo(ctx, cfg); err != nil {
			return nil, err
		}
	}
	c.store = store.NewSessionStore(repo, store.WithKeyPrefix(cfg.GetStoreKeyPrefix()))

	pipelineOpts := []pipeline.Option{
		pipeline.WithTimeout(cfg.GetRequestTimeout()),
		pipeline.WithLogger(o.logger),
		pipeline.WithOnCleared(func() { c.session.Discard() }),
	}
	if o.doer != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithDoer(o.doer))
	}
	c.pipeline = pipeline.New(cfg.GetAPIURL(), c.store, append(pipelineOpts, o.pipeline...)...)
	c.remote = remote.New(c.pipeline)

	c.metrics = refresh.NewMetrics(o.registerer)
	c.coordinator = refresh.NewCoordinator(c.store, c.remote,
		refresh.WithLogger(o.logger),
		refresh.WithMetrics(c.metrics),
	)

	sessionOpts := []session.Option{
		session.WithLoginRoute(cfg.GetLoginRoute()),
		session.WithLogger(o.logger),
	}
	if o.navigator != nil {
		sessionOpts = append(sessionOpts, session.WithNavigator(o.navigator))
	}
	c.session = session.NewManager(c.store, c.remote, c.coordinator, sessionOpts...)

	// close the loop: the pipeline recovers through the coordinator, and the
	// coordinator reports transitions to the session
	c.coordinator.SetHooks(c.session.RefreshHooks())
	c.pipeline.SetRefresher(c.coordinator)

	return c, nil
}

func (c *Client) openRepo(ctx context.Context, cfg config.StoreConfig) (store.Repo, error) {
	switch backend := cfg.GetStoreBackend(); backend {
	case config.StoreBackendMemory, "":
		return store.NewMemoryRepo(), nil
	case config.StoreBackendRedis:
		r, err := redisrepo.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		c.closeRepo = r.Close
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

func (c *Client) Store() *store.SessionStore {
	return c.store
}

func (c *Client) Metrics() *refresh.Metrics {
	return c.metrics
}

// DoJSON sends an authenticated JSON request relative to the API base URL
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	return c.pipeline.DoJSON(ctx, method, path, in, out)
}

// TokenSource exposes the stored credential to golang.org/x/oauth2 consumers.
// A token within leeway of expiry is renewed through the coordinator first.
func (c *Client) TokenSource(ctx context.Context, leeway time.Duration) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c, leeway: leeway}
}

// Close releases the store backend
func (c *Client) Close() error {
	return c.closeRepo()
}

type tokenSource struct {
	ctx    context.Context
	client *Client
	leeway time.Duration
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	cred, err := ts.client.store.Credential(ts.ctx)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	if !cred.Present() {
		return nil, autherrors.ErrNoCredential
	}
	if !cred.ExpiresAt.IsZero() && cred.ExpiresWithin(ts.leeway) {
		if _, err := ts.client.coordinator.AcquireFreshToken(ts.ctx); err != nil {
			return nil, err
		}
		if cred, err = ts.client.store.Credential(ts.ctx); err != nil {
			return nil, fmt.Errorf("read credential: %w", err)
		}
	}
	return cred.Token(), nil
}

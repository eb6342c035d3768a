// Package pipeline is the authenticated HTTP client. Every request runs through
// an explicit chain of request interceptors (credential attachment first) and
// every result through a chain of response interceptors (status check, then
// expired-credential recovery).
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json"
	maxErrorBody    = 64 << 10
)

// Doer sends a request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenStore is the read side of the session store, plus Clear for unreadable sessions.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Refresher hands out a freshly issued access token
type Refresher interface {
	AcquireFreshToken(ctx context.Context) (string, error)
}

// RequestInterceptor transforms a request before it is sent.
type RequestInterceptor func(req *http.Request) (*http.Request, error)

// ResponseInterceptor transforms the outcome of a request. Exactly one of resp
// and err is non-nil on input and should be on output.
type ResponseInterceptor func(req *http.Request, resp *http.Response, err error) (*http.Response, error)

type Pipeline struct {
	baseURL      string
	doer         Doer
	store        TokenStore
	refresher    Refresher
	publicRoutes []string
	refreshRoute string
	log          zerolog.Logger

	onCleared     func()
	extraRequest  []RequestInterceptor
	extraResponse []ResponseInterceptor
}

type Option func(*Pipeline)

// WithDoer replaces the default *http.Client
func WithDoer(d Doer) Option {
	return func(p *Pipeline) {
		p.doer = d
	}
}

// WithTimeout sets the per-request timeout of the default *http.Client
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.doer = &http.Client{Timeout: timeout}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

func WithRefresher(r Refresher) Option {
	return func(p *Pipeline) {
		p.refresher = r
	}
}

// WithPublicRoutes replaces the set of path suffixes that never carry a credential
func WithPublicRoutes(routes ...string) Option {
	return func(p *Pipeline) {
		p.publicRoutes = routes
	}
}

// WithOnCleared runs fn after the pipeline clears a session it could not read
func WithOnCleared(fn func()) Option {
	return func(p *Pipeline) {
		p.onCleared = fn
	}
}

// WithRequestInterceptor appends to the request chain, after credential attachment.
func WithRequestInterceptor(i RequestInterceptor) Option {
	return func(p *Pipeline) {
		p.extraRequest = append(p.extraRequest, i)
	}
}

// WithResponseInterceptor appends to the response chain, after recovery.
func WithResponseInterceptor(i ResponseInterceptor) Option {
	return func(p *Pipeline) {
		p.extraResponse = append(p.extraResponse, i)
	}
}

func New(baseURL string, store TokenStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		baseURL:      strings.TrimRight(baseURL, "/"),
		doer:         &http.Client{Timeout: 10 * time.Second},
		store:        store,
		publicRoutes: remote.PublicRoutes(),
		refreshRoute: remote.RouteRefresh,
		log:          log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "pipeline").Logger()
	return p
}

// SetRefresher binds the refresher after construction. The refresher usually
// depends on a remote client that sends through this pipeline.
func (p *Pipeline) SetRefresher(r Refresher) {
	p.refresher = r
}

func (p *Pipeline) requestChain() []RequestInterceptor {
	return append([]RequestInterceptor{p.attachCredential}, p.extraRequest...)
}

// recoveryChain turns the raw outcome into a result, re-issuing on 401 at most once.
func (p *Pipeline) recoveryChain() []ResponseInterceptor {
	return []ResponseInterceptor{checkStatus, p.recoverExpired}
}

// Do runs req through the pipeline. Any non-2xx status is returned as a
// *errors.StatusError with the response already closed. Extra response
// interceptors see the final result once, after any retry.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	resp, err := p.send(req)
	for _, step := range p.extraResponse {
		resp, err = step(req, resp, err)
	}
	return resp, err
}

// send runs the request chain, the round trip and the recovery chain.
func (p *Pipeline) send(req *http.Request) (*http.Response, error) {
	var err error
	for _, step := range p.requestChain() {
		if req, err = step(req); err != nil {
			return nil, err
		}
	}

	resp, err := p.doer.Do(req)
	if err != nil {
		resp = nil
		err = fmt.Errorf("%w: %s %s: %w", autherrors.ErrTransportFailure, req.Method, req.URL.Redacted(), err)
	} else {
		p.log.Debug().Str("method", req.Method).Str("url", req.URL.Redacted()).Int("status", resp.StatusCode).Bool("retry", IsRetry(req.Context())).Msg("request")
	}

	for _, step := range p.recoveryChain() {
		resp, err = step(req, resp, err)
	}
	return resp, err
}

// NewRequest builds a request for path relative to the base URL. Absolute URLs
// are used as given.
func (p *Pipeline) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, p.resolve(path), body)
}

// DoJSON sends in as a JSON body (when non-nil) and decodes the response into out (when non-nil).
func (p *Pipeline) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := p.NewRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := p.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (p *Pipeline) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.baseURL + path
}

func (p *Pipeline) isPublicRoute(path string) bool {
	for _, route := range p.publicRoutes {
		if strings.HasSuffix(path, route) {
			return true
		}
	}
	return false
}

func (p *Pipeline) isRefreshRoute(path string) bool {
	return strings.Contains(path, p.refreshRoute)
}

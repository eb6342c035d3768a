package pipeline

import (
	"context"
	"io"
	"net/http"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/oauth2"
)

type retryKey struct{}

// retryState is per-request metadata marking a request that was already
// re-issued after a refresh, and the token it must carry.
type retryState struct {
	token string
}

// IsRetry reports whether ctx belongs to a request re-issued after a refresh
func IsRetry(ctx context.Context) bool {
	_, ok := ctx.Value(retryKey{}).(*retryState)
	return ok
}

func retryFrom(ctx context.Context) *retryState {
	rs, _ := ctx.Value(retryKey{}).(*retryState)
	return rs
}

// attachCredential adds "Authorization: Bearer <token>" to non-public requests.
// Local expiry is not consulted; an expired token is still sent and the server's
// 401 drives recovery.
func (p *Pipeline) attachCredential(req *http.Request) (*http.Request, error) {
	if p.isPublicRoute(req.URL.Path) {
		return req, nil
	}

	ctx := req.Context()
	var token string
	if rs := retryFrom(ctx); rs != nil && rs.token != "" {
		token = rs.token
	} else {
		var err error
		token, err = p.store.AccessToken(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to read access token, clearing session")
			if clearErr := p.store.Clear(ctx); clearErr != nil {
				p.log.Err(clearErr).Msg("failed to clear unreadable session")
			}
			if p.onCleared != nil {
				p.onCleared()
			}
			return req, nil
		}
		if token == "" {
			p.log.Debug().Err(autherrors.ErrNoCredential).Str("url", req.URL.Redacted()).Msg("sending unauthenticated")
			return req, nil
		}
	}

	out := req.Clone(ctx)
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	return out, nil
}

// checkStatus turns non-2xx responses into *errors.StatusError.
func checkStatus(req *http.Request, resp *http.Response, err error) (*http.Response, error) {
	if err != nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return resp, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &autherrors.StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

// recoverExpired refreshes and re-issues a request once when it failed with 401.
// Public routes, the refresh endpoint and already retried requests propagate
// their failure unchanged.
func (p *Pipeline) recoverExpired(req *http.Request, resp *http.Response, err error) (*http.Response, error) {
	if err == nil || !autherrors.Is(err, autherrors.ErrExpiredCredential) {
		return resp, err
	}
	path := req.URL.Path
	if p.refresher == nil || p.isPublicRoute(path) || p.isRefreshRoute(path) || IsRetry(req.Context()) {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		p.log.Warn().Err(autherrors.ErrBodyNotReplayable).Str("url", req.URL.Redacted()).Msg("not retrying 401")
		return resp, err
	}

	rs := &retryState{}
	retry := req.Clone(context.WithValue(req.Context(), retryKey{}, rs))

	token, refreshErr := p.refresher.AcquireFreshToken(req.Context())
	if refreshErr != nil {
		return nil, refreshErr
	}
	rs.token = token

	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, autherrors.Wrapf(bodyErr, "rebuild body for retry of %s %s", req.Method, req.URL.Redacted())
		}
		retry.Body = body
	}
	return p.send(retry)
}

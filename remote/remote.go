// Package remote is the RPC surface of the authentication service. Each call is
// a single request/response pair; retry and refresh policy live in the pipeline.
package remote

import (
	"context"
	"fmt"
	"net/http"
)

// JSONDoer sends a JSON request to path and decodes the response into out.
type JSONDoer interface {
	DoJSON(ctx context.Context, method, path string, in, out any) error
}

type Client struct {
	doer JSONDoer
}

func New(doer JSONDoer) *Client {
	return &Client{doer: doer}
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doer.DoJSON(ctx, http.MethodPost, RouteLogin, req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &resp, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doer.DoJSON(ctx, http.MethodPost, RouteRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return &resp, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doer.DoJSON(ctx, http.MethodPost, RouteRefresh, RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &resp, nil
}

// WhoAmI fetches the identity behind the attached credential
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	var user User
	if err := c.doer.DoJSON(ctx, http.MethodGet, RouteMe, nil, &user); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &user, nil
}

package config

import "time"

type ClientConfig interface {
	GetAPIURL() string
	GetRequestTimeout() time.Duration
	GetLoginRoute() string
}

type Client struct{}

var _ ClientConfig = Client{}

// GetAPIURL returns the base URL of the authentication service and API
func (Client) GetAPIURL() string {
	return GetEnv("API_URL", "http://localhost:3000")
}

// GetRequestTimeout is the per-request transport timeout. Refresh calls inherit it.
func (Client) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
}

// GetLoginRoute is where the session navigates after logout or a failed refresh
func (Client) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

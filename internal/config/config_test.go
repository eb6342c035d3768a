package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("PORT", "")
	t.Setenv("STORE_BACKEND", "")

	c := config.New()
	require.Equal(t, "http://localhost:3000", c.GetAPIURL())
	require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	require.Equal(t, "/login", c.GetLoginRoute())
	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, config.StoreBackendMemory, c.GetStoreBackend())
	require.Equal(t, "DEV", c.GetEnv())
}

func TestConfig_Overrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("PORT", ":9090")
	t.Setenv("REDIS_DB", "4")

	c := config.New()
	require.Equal(t, "https://api.example.com", c.GetAPIURL())
	require.Equal(t, 3*time.Second, c.GetRequestTimeout())
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 4, c.GetRedisDB())

	t.Run("malformed duration falls back", func(t *testing.T) {
		t.Setenv("REQUEST_TIMEOUT", "soon")
		require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	})
}

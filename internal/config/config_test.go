package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/cloudhub-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("API_TIMEOUT", "")
	t.Setenv("WEB_ADDR", "")

	c, err := config.New(config.WithEnvFiles())
	require.NoError(t, err)

	require.Equal(t, config.DefaultAPIBaseURL, c.GetAPIBaseURL())
	require.Equal(t, 10*time.Second, c.GetAPITimeout())
	require.Equal(t, "/login", c.GetLoginPath())
	require.Equal(t, "/dashboard", c.GetDashboardPath())
	require.True(t, c.GetCookieSecure())
	require.Equal(t, 30*time.Second, c.GetRefreshLeeway())
	require.Equal(t, 7*24*time.Hour, c.GetCookieMaxAge())
	require.Empty(t, c.GetRedisAddr())
	require.Equal(t, ":3000", c.GetWebAddr())
}

func TestNew_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.cloudhub.test/v1/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("COOKIE_SECURE", "false")

	c, err := config.New(config.WithEnvFiles())
	require.NoError(t, err)

	require.Equal(t, "https://api.cloudhub.test/v1", c.GetAPIBaseURL())
	require.Equal(t, 3*time.Second, c.GetAPITimeout())
	require.False(t, c.GetCookieSecure())
}

func TestNew_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SESSION_REDIS_ADDR=localhost:6390\n"), 0600))
	require.NoError(t, os.Unsetenv("SESSION_REDIS_ADDR"))
	t.Cleanup(func() { os.Unsetenv("SESSION_REDIS_ADDR") })

	c, err := config.New(config.WithEnvFiles(envFile, filepath.Join(dir, "missing.env")))
	require.NoError(t, err)
	require.Equal(t, "localhost:6390", c.GetRedisAddr())
}

func TestNew_Override(t *testing.T) {
	c, err := config.New(config.WithEnvFiles(), config.WithOverride("LOGIN_PATH", "/auth/login"))
	require.NoError(t, err)
	require.Equal(t, "/auth/login", c.GetLoginPath())
}

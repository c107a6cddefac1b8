package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:8000/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8000", cfg.BackendURL)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 20*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 3*time.Second, cfg.GuardWaitTimeout)
	assert.Equal(t, 12*time.Hour, cfg.EphemeralTTL)
	assert.Equal(t, "cc_ctx", cfg.ContextCookieName)
	assert.False(t, cfg.CookieSecure)
}

func TestLoadRequiresBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 300, cfg.RateLimitRPM)
}

func TestValidateRejectsRelativeBackend(t *testing.T) {
	t.Setenv("BACKEND_URL", "backend:8000")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadMock(t *testing.T) {
	t.Setenv("MOCK_PORT", "9191")
	t.Setenv("MOCK_ACCESS_TTL", "30s")

	cfg, err := LoadMock()
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.AccessTTL)
}

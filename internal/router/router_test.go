package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-center/internal/config"
	"command-center/internal/event"
	"command-center/internal/guard"
	"command-center/internal/handler"
	"command-center/internal/metrics"
	"command-center/internal/session"
	"command-center/internal/websocket"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:    5 * time.Second,
		BackendURL:        "http://backend.invalid",
		EphemeralTTL:      time.Hour,
		ContextCookieName: "cc_ctx",
		GuardWaitTimeout:  time.Second,
		CORSOrigins:       []string{"http://localhost:5173"},
		RateLimitRPM:      1000,
		AuthRateLimitRPM:  1000,
	}

	bus := event.NewBus()
	manager, err := session.NewManager(session.ManagerOptions{BackendURL: cfg.BackendURL, Bus: bus})
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	proxy, err := handler.NewProxyHandler(manager, bus, cfg.BackendURL)
	require.NoError(t, err)

	return New(cfg, guard.NewMiddleware(manager, guard.Options{WaitTimeout: time.Second}), Handlers{
		Auth:    handler.NewAuthHandler(manager, bus, time.Second),
		Session: handler.NewSessionHandler(manager, websocket.NewHub(bus), time.Second, cfg.CORSOrigins),
		Page:    handler.NewPageHandler(manager),
		Proxy:   proxy,
		Health:  handler.NewHealthHandler(nil),
	}, metrics.New())
}

func TestHealthAndMetricsAreServed(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterAssignsContextCookie(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "cc_ctx", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterGuardsPagesAndAPI(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Fsettings", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backend/api/employees", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

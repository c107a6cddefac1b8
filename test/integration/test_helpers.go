//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"command-center/internal/config"
	"command-center/internal/event"
	"command-center/internal/guard"
	"command-center/internal/handler"
	"command-center/internal/metrics"
	"command-center/internal/mockapi"
	"command-center/internal/model"
	"command-center/internal/router"
	"command-center/internal/session"
	"command-center/internal/storage"
	"command-center/internal/websocket"
)

type harness struct {
	gateway *httptest.Server
	backend *mockapi.Handler
	service *mockapi.Service
	redis   *miniredis.Miniredis
	durable *storage.Memory
	manager *session.Manager
	cfg     *config.Config
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, storage.NewMemory())
}

// newHarnessWith starts the mock backend and a gateway in front of it.
// Ephemeral storage is a miniredis instance; durable storage is supplied
// so tests can restart the gateway on the same data.
func newHarnessWith(t *testing.T, durable *storage.Memory) *harness {
	t.Helper()

	service, err := mockapi.NewService(mockapi.Options{HashCost: bcrypt.MinCost})
	require.NoError(t, err)
	backend := mockapi.NewHandler(service)
	backendServer := httptest.NewServer(backend.Routes())
	t.Cleanup(backendServer.Close)

	redisServer := miniredis.RunT(t)
	ephemeral, client, err := storage.NewRedisFromURL(t.Context(), "redis://"+redisServer.Addr(), "cc:test:", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := startGateway(t, backendServer.URL, durable, ephemeral)
	h.backend = backend
	h.service = service
	h.redis = redisServer
	return h
}

func startGateway(t *testing.T, backendURL string, durable *storage.Memory, ephemeral storage.Backend) *harness {
	t.Helper()

	cfg := &config.Config{
		ServerPort:         "8080",
		RequestTimeout:     10 * time.Second,
		BackendURL:         backendURL,
		APITimeout:         5 * time.Second,
		EphemeralTTL:       time.Hour,
		ContextCookieName:  "cc_ctx",
		SessionIdleTimeout: 20 * time.Minute,
		SessionCacheTTL:    30 * time.Minute,
		GuardWaitTimeout:   2 * time.Second,
		CORSOrigins:        []string{"http://localhost:5173"},
		RateLimitRPM:       1000,
		AuthRateLimitRPM:   1000,
	}
	require.NoError(t, cfg.Validate())

	m := metrics.New()
	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run(t.Context())

	manager, err := session.NewManager(session.ManagerOptions{
		BackendURL: cfg.BackendURL,
		APITimeout: cfg.APITimeout,
		Durable:    durable,
		Ephemeral:  ephemeral,
		Bus:        bus,
		Metrics:    m,
	})
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	proxy, err := handler.NewProxyHandler(manager, bus, cfg.BackendURL)
	require.NoError(t, err)

	guardMiddleware := guard.NewMiddleware(manager, guard.Options{
		WaitTimeout: cfg.GuardWaitTimeout,
		IdleTimeout: cfg.SessionIdleTimeout,
		Bus:         bus,
		Metrics:     m,
	})

	server := httptest.NewServer(router.New(cfg, guardMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(manager, bus, cfg.GuardWaitTimeout),
		Session: handler.NewSessionHandler(manager, hub, cfg.GuardWaitTimeout, []string{"*"}),
		Page:    handler.NewPageHandler(manager),
		Proxy:   proxy,
		Health:  handler.NewHealthHandler(nil),
	}, m))
	t.Cleanup(server.Close)

	return &harness{gateway: server, durable: durable, manager: manager, cfg: cfg}
}

// browser returns a client that keeps the context cookie and does not
// follow guard redirects.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func do(t *testing.T, client *http.Client, method string, url string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw := new(bytes.Buffer)
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	if raw.Len() > 0 {
		_ = json.Unmarshal(raw.Bytes(), &out)
	}
	return resp, out
}

func login(t *testing.T, client *http.Client, baseURL string, email string) envelope {
	t.Helper()
	resp, body := do(t, client, http.MethodPost, baseURL+"/login", map[string]any{
		"email":    email,
		"password": mockapi.DefaultPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	return body
}

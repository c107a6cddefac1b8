//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-center/internal/event"
	"command-center/internal/model"
	"command-center/internal/session"
	"command-center/internal/storage"
)

func TestLoginSessionAndNavigation(t *testing.T) {
	h := newHarness(t)
	client := browser(t)

	resp, body := do(t, client, http.MethodGet, h.gateway.URL+"/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var current session.Session
	require.NoError(t, json.Unmarshal(body.Data, &current))
	assert.Equal(t, session.StateAnonymous, current.State)

	login(t, client, h.gateway.URL, "lead@example.com")

	_, body = do(t, client, http.MethodGet, h.gateway.URL+"/api/session", nil)
	require.NoError(t, json.Unmarshal(body.Data, &current))
	assert.True(t, current.IsAuthenticated)
	require.NotNil(t, current.User)
	assert.Equal(t, "team_lead", current.User.Role)

	resp, body = do(t, client, http.MethodGet, h.gateway.URL+"/api/navigation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nav model.Navigation
	require.NoError(t, json.Unmarshal(body.Data, &nav))

	paths := []string{}
	for _, link := range nav.Main {
		paths = append(paths, link.Path)
	}
	assert.Equal(t, []string{"/", "/employees", "/projects", "/clients"}, paths)
}

func TestGuardRedirectsAndForbids(t *testing.T) {
	h := newHarness(t)
	client := browser(t)

	resp, _ := do(t, client, http.MethodGet, h.gateway.URL+"/users?tab=all", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?from="+url.QueryEscape("/users?tab=all"), resp.Header.Get("Location"))

	login(t, client, h.gateway.URL, "hr@example.com")

	resp, _ = do(t, client, http.MethodGet, h.gateway.URL+"/users", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/forbidden", resp.Header.Get("Location"))

	resp, body := do(t, client, http.MethodGet, h.gateway.URL+"/employees", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page model.Page
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, "employees", page.Key)
}

func TestProxyRefreshesTransparently(t *testing.T) {
	h := newHarness(t)
	client := browser(t)
	login(t, client, h.gateway.URL, "hr@example.com")

	h.service.ExpireAccessTokens()

	var wg sync.WaitGroup
	statuses := make([]int, 5)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := do(t, client, http.MethodGet, h.gateway.URL+"/api/backend/api/employees", nil)
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, 1, h.backend.Calls("/api/auth/refresh"))
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	client := browser(t)
	login(t, client, h.gateway.URL, "admin@example.com")

	resp, body := do(t, client, http.MethodPost, h.gateway.URL+"/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, body.Meta)
	assert.Equal(t, "/login", body.Meta.Redirect)
	assert.Zero(t, h.service.ActiveRefreshTokens())

	resp, body = do(t, client, http.MethodGet, h.gateway.URL+"/api/backend/api/employees", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestSessionSurvivesGatewayRestart(t *testing.T) {
	durable := storage.NewMemory()
	h := newHarnessWith(t, durable)
	client := browser(t)
	login(t, client, h.gateway.URL, "employee@example.com")

	first, err := url.Parse(h.gateway.URL)
	require.NoError(t, err)
	cookies := client.Jar.Cookies(first)
	require.NotEmpty(t, cookies)

	// Same durable data, fresh ephemeral scope.
	restarted := startGateway(t, h.cfg.BackendURL, durable, storage.NewMemory())
	second, err := url.Parse(restarted.gateway.URL)
	require.NoError(t, err)
	client.Jar.SetCookies(second, cookies)

	resp, body := do(t, client, http.MethodGet, restarted.gateway.URL+"/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var current session.Session
	require.NoError(t, json.Unmarshal(body.Data, &current))
	assert.True(t, current.IsAuthenticated)
	require.NotNil(t, current.User)
	assert.Equal(t, "employee@example.com", current.User.Email)
}

func TestSessionEventsStream(t *testing.T) {
	h := newHarness(t)
	client := browser(t)
	login(t, client, h.gateway.URL, "client@example.com")

	base, err := url.Parse(h.gateway.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, cookie := range client.Jar.Cookies(base) {
		header.Add("Cookie", cookie.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + h.gateway.URL[len("http"):] + "/api/session/events"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() event.Event {
		_, raw, err := conn.Read(ctx)
		require.NoError(t, err)
		var evt event.Event
		require.NoError(t, json.Unmarshal(raw, &evt))
		return evt
	}

	initial := read()
	assert.Equal(t, event.TypeSessionChanged, initial.Type)

	do(t, client, http.MethodPost, h.gateway.URL+"/logout", nil)

	for {
		evt := read()
		if evt.Type == event.TypeLoggedOut {
			break
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	client := browser(t)

	resp, _ := do(t, client, http.MethodGet, h.gateway.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	login(t, client, h.gateway.URL, "admin@example.com")

	resp, err := client.Get(h.gateway.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

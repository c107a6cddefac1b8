package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-center/internal/apiclient"
	"command-center/internal/event"
	"command-center/internal/middleware"
	"command-center/internal/model"
	"command-center/internal/session"
	"command-center/internal/storage"
	"command-center/internal/tokenstore"
)

type stubAPI struct {
	mu        sync.Mutex
	profile   *model.UserProfile
	refreshes int
	logouts   int
	tokens    *tokenstore.Store
}

func (s *stubAPI) Login(context.Context, string, string, string) (apiclient.LoginResult, error) {
	return apiclient.LoginResult{}, errors.New("not used")
}

func (s *stubAPI) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.profile == nil {
		s.tokens.ClearTokens(ctx)
		return "", apiclient.ErrSessionExpired
	}
	s.tokens.SetAccessToken(ctx, "fresh", true)
	return "fresh", nil
}

func (s *stubAPI) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	return nil
}

func (s *stubAPI) Me(context.Context) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, &apiclient.StatusError{Status: http.StatusUnauthorized}
	}
	return s.profile, nil
}

type stubSessions struct {
	entry *session.Entry
}

func (s *stubSessions) Get(string) (*session.Entry, error) {
	return s.entry, nil
}

type fixture struct {
	api        *stubAPI
	tokens     *tokenstore.Store
	controller *session.Controller
	handler    http.Handler
	bus        *event.InMemoryBus
	now        time.Time
}

func newFixture(t *testing.T, profile *model.UserProfile, roles ...string) *fixture {
	t.Helper()

	tokens := tokenstore.New("ctx-guard", storage.NewMemory(), storage.NewMemory())
	api := &stubAPI{profile: profile, tokens: tokens}
	f := &fixture{api: api, tokens: tokens, bus: event.NewBus(), now: time.Now()}

	f.controller = session.NewController("ctx-guard", api, tokens, session.ControllerOptions{
		Now: func() time.Time { return f.now },
	})

	mw := NewMiddleware(&stubSessions{entry: &session.Entry{ID: "ctx-guard", Controller: f.controller, Tokens: tokens}}, Options{
		WaitTimeout: 50 * time.Millisecond,
		IdleTimeout: 20 * time.Minute,
		Bus:         f.bus,
		Now:         func() time.Time { return f.now },
	})

	f.handler = mw.Require(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(s)
	}))
	return f
}

func (f *fixture) do(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithContextID(req.Context(), "ctx-guard"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireWaitsForStartup(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("/employees")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRequireRedirectsAnonymousToLogin(t *testing.T) {
	f := newFixture(t, nil, "hr")
	f.controller.Start(context.Background())

	rec := f.do("/employees")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Femployees", rec.Header().Get("Location"))
	assert.Zero(t, f.api.refreshes)
}

func TestRequireAPIPathGetsUnauthorized(t *testing.T) {
	f := newFixture(t, nil)
	f.controller.Start(context.Background())

	rec := f.do("/api/navigation")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, "/login?from=%2Fapi%2Fnavigation", body.Meta.Redirect)
}

func TestRequireRestoresSilently(t *testing.T) {
	f := newFixture(t, &model.UserProfile{ID: "1", Role: "hr"}, "hr")
	f.controller.Start(context.Background())
	f.tokens.SetRefreshToken(context.Background(), "r1")

	rec := f.do("/employees")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.api.refreshes)

	var s session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.True(t, s.IsAuthenticated)
	assert.False(t, f.tokens.LastActive(context.Background()).IsZero())
}

func TestRequireForbidsWrongRole(t *testing.T) {
	f := newFixture(t, &model.UserProfile{ID: "1", Role: "employee"}, "HR")
	f.controller.Start(context.Background())
	require.True(t, f.controller.RefreshUser(context.Background()))

	rec := f.do("/employees")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/forbidden", rec.Header().Get("Location"))

	rec = f.do("/api/employees")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireExpiresIdleSession(t *testing.T) {
	f := newFixture(t, &model.UserProfile{ID: "1", Role: "hr"})
	ctx := context.Background()
	f.tokens.SetRefreshToken(ctx, "r1")
	f.controller.Start(ctx)
	require.True(t, f.controller.Session().IsAuthenticated)

	rec := f.do("/attendance")
	require.Equal(t, http.StatusOK, rec.Code)

	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	f.now = f.now.Add(21 * time.Minute)
	rec = f.do("/attendance")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Fattendance", rec.Header().Get("Location"))
	assert.Equal(t, 1, f.api.logouts)
	assert.False(t, f.controller.Session().IsAuthenticated)
	assert.Empty(t, f.tokens.AccessToken(ctx))
	assert.Empty(t, f.tokens.RefreshToken(ctx))

	select {
	case evt := <-events:
		assert.Equal(t, event.TypeSessionExpired, evt.Type)
		assert.Equal(t, "ctx-guard", evt.ContextID)
	default:
		t.Fatal("no session.expired event")
	}
}

func TestRequireWithoutContextID(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?from=%2Fprojects", rec.Header().Get("Location"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextCookieAssignsID(t *testing.T) {
	var seen string
	handler := NewContextCookie("", true, time.Hour).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ContextIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultContextCookie, cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
}

func TestContextCookieKeepsExistingID(t *testing.T) {
	id := uuid.NewString()
	var seen string
	handler := NewContextCookie("cc_ctx", false, 0).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ContextIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "cc_ctx", Value: id})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, id, seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestContextCookieReplacesGarbage(t *testing.T) {
	var seen string
	handler := NewContextCookie("cc_ctx", false, 0).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ContextIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "cc_ctx", Value: "../../etc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEqual(t, "../../etc", seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

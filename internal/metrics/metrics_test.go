package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRefresh("success")
	m.ObserveRefresh("success")
	m.ObserveLogin("failure")
	m.ObserveGuard("allow")
	m.SetActiveControllers(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LoginTotal.WithLabelValues("failure")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.ActiveControllers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRefresh("success")
		m.ObserveLogin("success")
		m.ObserveGuard("allow")
		m.SetActiveControllers(1)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveLogin("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), `command_center_login_total{outcome="success"} 1`)
}

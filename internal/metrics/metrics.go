// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	RefreshTotal      *prometheus.CounterVec
	LoginTotal        *prometheus.CounterVec
	GuardDecisions    *prometheus.CounterVec
	ActiveControllers prometheus.Gauge
}

// New registers the collectors on a private registry so tests can build as
// many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "command_center",
				Name:      "token_refresh_total",
				Help:      "Access token refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "command_center",
				Name:      "login_total",
				Help:      "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		GuardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "command_center",
				Name:      "guard_decisions_total",
				Help:      "Route guard decisions by kind.",
			},
			[]string{"decision"},
		),
		ActiveControllers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "command_center",
				Name:      "session_controllers",
				Help:      "Session controllers currently held in memory.",
			},
		),
	}

	m.registry.MustRegister(m.RefreshTotal, m.LoginTotal, m.GuardDecisions, m.ActiveControllers)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGuard(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SetActiveControllers(n int) {
	if m == nil {
		return
	}
	m.ActiveControllers.Set(float64(n))
}

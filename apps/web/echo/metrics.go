package echoweb

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/portal"
)

// Metrics are the portal's Prometheus collectors, on their own registry.
type Metrics struct {
	registry  *prometheus.Registry
	logins    *prometheus.CounterVec
	decisions *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo",
			Subsystem: "portal",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo",
			Subsystem: "portal",
			Name:      "guard_decisions_total",
			Help:      "Access guard decisions by route.",
		}, []string{"route", "decision"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins,
		m.decisions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeLogin(res portal.LoginResult) {
	m.logins.WithLabelValues(loginOutcome(res)).Inc()
}

func (m *Metrics) observeDecision(route string, d portal.Decision) {
	m.decisions.WithLabelValues(route, d.String()).Inc()
}

func loginOutcome(res portal.LoginResult) string {
	switch {
	case res.OK:
		return "ok"
	case errors.Is(res.Err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(res.Err, auth.ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "error"
	}
}

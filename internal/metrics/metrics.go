// Package metrics holds the Prometheus collectors for the auth service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
)

// Metrics methods are nil-safe so components can run without instrumentation.
type Metrics struct {
	registry       *prometheus.Registry
	logins         *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	logouts        prometheus.Counter
	guardRejects   *prometheus.CounterVec
	sessionTouches prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome code.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refreshes_total",
			Help:      "Token refresh attempts by outcome code.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		guardRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "guard_rejections_total",
			Help:      "Requests rejected by the authorization guard, by code.",
		}, []string{"code"}),
		sessionTouches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "session_renewals_total",
			Help:      "Sliding-expiration renewals performed on validated requests.",
		}),
	}

	reg.MustRegister(m.logins, m.refreshes, m.logouts, m.guardRejects, m.sessionTouches)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) GuardRejected(code string) {
	if m == nil {
		return
	}
	m.guardRejects.WithLabelValues(code).Inc()
}

func (m *Metrics) SessionRenewed() {
	if m == nil {
		return
	}
	m.sessionTouches.Inc()
}

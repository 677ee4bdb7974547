// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBanned  = "banned"
)

type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts    *prometheus.CounterVec
	BansTotal        prometheus.Counter
	UpstreamRequests *prometheus.CounterVec
	UpstreamErrors   prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ztgate_login_attempts_total",
			Help: "Login attempts by outcome (success, failure, banned).",
		}, []string{"outcome"}),
		BansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ztgate_bans_total",
			Help: "Bans armed by the brute-force guard.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ztgate_upstream_requests_total",
			Help: "Forwarded controller requests by upstream status code.",
		}, []string{"code"}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ztgate_upstream_errors_total",
			Help: "Forwarded controller requests that failed at transport level.",
		}),
	}
	registry.MustRegister(m.LoginAttempts, m.BansTotal, m.UpstreamRequests, m.UpstreamErrors)

	return m
}

// Handler serves the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

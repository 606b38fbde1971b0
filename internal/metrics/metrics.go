// Package metrics provides Prometheus metrics for the studio assistant.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	CommandsTotal  *prometheus.CounterVec
	RouteDuration  *prometheus.HistogramVec
	OracleCalls    *prometheus.CounterVec
	ActionsTotal   *prometheus.CounterVec
	SessionsActive prometheus.Gauge
	ErrorsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_commands_total",
				Help: "Total number of routed utterances by intent and outcome.",
			},
			[]string{"intent", "outcome"},
		),
		RouteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_route_duration_seconds",
				Help:    "Routing duration by intent, oracle round-trips included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"intent"},
		),
		OracleCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_oracle_calls_total",
				Help: "Conversational oracle calls by outcome.",
			},
			[]string{"outcome"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_actions_total",
				Help: "Pending action lifecycle events.",
			},
			[]string{"event"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "assistant_sessions_active",
				Help: "Number of conversation sessions held in memory.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.CommandsTotal)
	reg.MustRegister(m.RouteDuration)
	reg.MustRegister(m.OracleCalls)
	reg.MustRegister(m.ActionsTotal)
	reg.MustRegister(m.SessionsActive)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand increments the command counter. Safe on a nil receiver.
func (m *Metrics) RecordCommand(intent, outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(intent, outcome).Inc()
}

// ObserveRoute records how long routing took.
func (m *Metrics) ObserveRoute(intent string, seconds float64) {
	if m == nil {
		return
	}
	m.RouteDuration.WithLabelValues(intent).Observe(seconds)
}

// RecordOracle counts an oracle call: ok, error or disabled.
func (m *Metrics) RecordOracle(outcome string) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(outcome).Inc()
}

// RecordAction counts a pending action event: staged, applied, conflict,
// cancelled or expired.
func (m *Metrics) RecordAction(event string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(event).Inc()
}

// SetSessions sets the active session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// Package telemetry exposes Prometheus metrics for the extension lifecycle.
//
// Every method is safe on a nil *Metrics, so callers never need to check
// whether telemetry is enabled.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "puppetext"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	activations      *prometheus.CounterVec
	connectionState  *prometheus.GaugeVec
	transitions      *prometheus.CounterVec
	connects         *prometheus.CounterVec
	disposeFailures  *prometheus.CounterVec
	noticesShown     *prometheus.CounterVec
	commandsExecuted *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activations_total",
				Help:      "Activations by outcome (ready, degraded, disabled, error)",
			},
			[]string{"outcome"},
		),
		connectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_transitions_total",
				Help:      "Connection state transitions",
			},
			[]string{"from", "to"},
		),
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_attempts_total",
				Help:      "Connection attempts by result",
			},
			[]string{"result"},
		),
		disposeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feature_dispose_failures_total",
				Help:      "Features whose disposal returned an error",
			},
			[]string{"feature"},
		),
		noticesShown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notices_shown_total",
				Help:      "User notices shown by kind",
			},
			[]string{"kind"},
		),
		commandsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_executed_total",
				Help:      "Editor commands executed by id and result",
			},
			[]string{"command", "result"},
		),
	}

	m.registry.MustRegister(
		m.activations,
		m.connectionState,
		m.transitions,
		m.connects,
		m.disposeFailures,
		m.noticesShown,
		m.commandsExecuted,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Activation counts one activation outcome.
func (m *Metrics) Activation(outcome string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(outcome).Inc()
}

// Transition records a connection state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
	m.connectionState.WithLabelValues(from).Set(0)
	m.connectionState.WithLabelValues(to).Set(1)
}

// ConnectAttempt counts a connection attempt; result is "ok", "error" or
// "cancelled".
func (m *Metrics) ConnectAttempt(result string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(result).Inc()
}

// DisposeFailure counts a failed feature disposal.
func (m *Metrics) DisposeFailure(feature string) {
	if m == nil {
		return
	}
	m.disposeFailures.WithLabelValues(feature).Inc()
}

// NoticeShown counts a notice shown to the user.
func (m *Metrics) NoticeShown(kind string) {
	if m == nil {
		return
	}
	m.noticesShown.WithLabelValues(kind).Inc()
}

// CommandExecuted counts one command invocation.
func (m *Metrics) CommandExecuted(id string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commandsExecuted.WithLabelValues(id, result).Inc()
}

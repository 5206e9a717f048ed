// Package metrics exposes prometheus counters for session lifecycle events.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billadmin"

// Operation results.
const (
	ResultSuccess     = "success"
	ResultMfaRequired = "mfa_required"
	ResultRejected    = "rejected"
	ResultNetwork     = "network_error"
	ResultInvalid     = "invalid"
	ResultError       = "error"
)

// Hydration results.
const (
	HydrateRestored = "restored"
	HydrateEmpty    = "empty"
	HydrateExpired  = "expired"
	HydrateCorrupt  = "corrupt"
	HydrateError    = "error"
)

type Metrics struct {
	operations    *prometheus.CounterVec
	hydrations    *prometheus.CounterVec
	authenticated prometheus.Gauge
	guardDecision *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by operation and result.",
		}, []string{"operation", "result"}),
		hydrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "hydrations_total",
			Help:      "Session restores from storage by result.",
		}, []string{"result"}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "authenticated",
			Help:      "1 while a user session is active.",
		}),
		guardDecision: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route guard decisions by outcome.",
		}, []string{"decision"}),
	}
}

func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Hydration(result string) {
	if m == nil {
		return
	}
	m.hydrations.WithLabelValues(result).Inc()
}

func (m *Metrics) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}

func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.guardDecision.WithLabelValues(decision).Inc()
}

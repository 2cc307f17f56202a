// Package metrics holds the prometheus collectors shared by the session components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloudhub_session"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry prometheus.Gatherer

	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	guardTrips      prometheus.Counter
	backendFailures *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login and registration exchanges by result",
		}, []string{"result"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Token refresh exchanges by result",
		}, []string{"result"}),
		guardTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_trips_total",
			Help:      "Sessions collapsed by an authorization rejection",
		}),
		backendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Credential backend operations that failed",
		}, []string{"backend", "op"}),
	}
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) GuardTrip() {
	if m == nil {
		return
	}
	m.guardTrips.Inc()
}

func (m *Metrics) BackendFailure(backend, op string) {
	if m == nil {
		return
	}
	m.backendFailures.WithLabelValues(backend, op).Inc()
}

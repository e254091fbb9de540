// Package http provides the HTTP transport adapter for the GaaS server.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the GaaS server.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	DecisionsTotal   *prometheus.CounterVec
	ViolationsTotal  *prometheus.CounterVec
	AuditDropsTotal  prometheus.Counter
	RegisteredAgents prometheus.Gauge
	ActivePolicies   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gaas",
				Name:      "requests_total",
				Help:      "Total number of API requests processed",
			},
			[]string{"endpoint", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gaas",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gaas",
				Name:      "decisions_total",
				Help:      "Total enforcement decisions by outcome",
			},
			[]string{"decision"}, // allow/warn/block/suspend
		),
		ViolationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gaas",
				Name:      "violations_total",
				Help:      "Total policy violations detected by severity",
			},
			[]string{"severity"},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "gaas",
				Name:      "audit_drops_total",
				Help:      "Total decision audit records dropped due to backpressure",
			},
		),
		RegisteredAgents: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gaas",
				Name:      "registered_agents",
				Help:      "Number of registered agents",
			},
		),
		ActivePolicies: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gaas",
				Name:      "policies_loaded",
				Help:      "Number of loaded policies",
			},
		),
	}
}

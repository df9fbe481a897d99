package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine-level metrics: operation execution,
// validation, subscription lifecycle, and transport connections.
type Metrics struct {
	// Operation metrics
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	FieldErrorsTotal   prometheus.Counter
	ValidationFailures *prometheus.CounterVec

	// Subscription metrics
	SubscriptionsActive prometheus.Gauge
	SubscriptionsTotal  *prometheus.CounterVec
	EmissionsTotal      *prometheus.CounterVec
	EmissionsDropped    *prometheus.CounterVec

	// Transport metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total operations executed",
			},
			[]string{"kind", "status"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vector",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Operation execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		FieldErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "engine",
				Name:      "field_errors_total",
				Help:      "Total field-level errors recorded in response envelopes",
			},
		),

		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "engine",
				Name:      "validation_failures_total",
				Help:      "Total operations rejected by argument or document validation",
			},
			[]string{"reason"},
		),

		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vector",
				Subsystem: "subscription",
				Name:      "active",
				Help:      "Currently active subscriptions",
			},
		),

		SubscriptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "subscription",
				Name:      "total",
				Help:      "Total subscriptions accepted",
			},
			[]string{"field"},
		),

		EmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "subscription",
				Name:      "emissions_total",
				Help:      "Total emissions resolved and enqueued for delivery",
			},
			[]string{"field"},
		),

		EmissionsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "subscription",
				Name:      "emissions_dropped_total",
				Help:      "Total emissions dropped by backpressure policy",
			},
			[]string{"field", "policy"},
		),

		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vector",
				Subsystem: "transport",
				Name:      "connections_active",
				Help:      "Currently open streaming connections",
			},
		),

		ConnectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vector",
				Subsystem: "transport",
				Name:      "connections_total",
				Help:      "Total streaming connections accepted",
			},
		),
	}
}

// collectors returns every core metric for bulk registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OperationsTotal,
		m.OperationDuration,
		m.FieldErrorsTotal,
		m.ValidationFailures,
		m.SubscriptionsActive,
		m.SubscriptionsTotal,
		m.EmissionsTotal,
		m.EmissionsDropped,
		m.ConnectionsActive,
		m.ConnectionsTotal,
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all connector metrics
type Metrics struct {
	// Gateway metrics
	GatewayOperationsTotal   *prometheus.CounterVec
	GatewayOperationDuration *prometheus.HistogramVec

	// Operation pipeline metrics
	OperationsTotal  *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec
	ExecutorInFlight prometheus.Gauge

	// State-transition queue metrics
	QueueDepth           prometheus.Gauge
	TaskAttemptsTotal    *prometheus.CounterVec
	TasksDroppedTotal    *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec

	// Background process metrics
	CaptureBatchesTotal prometheus.Counter
	ChargesExpiredTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		GatewayOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_operations_total",
				Help:      "Total number of gateway round-trips by provider, operation and result",
			},
			[]string{"provider", "operation", "result"},
		),
		GatewayOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_operation_duration_seconds",
				Help:      "Gateway round-trip duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of charge operations by type and final status",
			},
			[]string{"operation", "status"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_errors_total",
				Help:      "Total number of charge operations rejected before the gateway call",
			},
			[]string{"operation", "error"},
		),
		ExecutorInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executor_in_flight",
				Help:      "Number of gateway operations currently running on the executor pool",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_transition_queue_depth",
				Help:      "Number of state-transition tasks waiting in the queue",
			},
		),
		TaskAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transition_attempts_total",
				Help:      "State-transition task attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		TasksDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transition_dropped_total",
				Help:      "State-transition tasks dropped after exhausting attempts",
			},
			[]string{"kind"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events handed to the publisher by type",
			},
			[]string{"event_type"},
		),
		CaptureBatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_batches_total",
				Help:      "Capture process batches drained",
			},
		),
		ChargesExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charges_expired_total",
				Help:      "Charges moved to the expired status by the expiry sweep",
			},
		),
	}

	reg.MustRegister(
		m.GatewayOperationsTotal,
		m.GatewayOperationDuration,
		m.OperationsTotal,
		m.OperationErrors,
		m.ExecutorInFlight,
		m.QueueDepth,
		m.TaskAttemptsTotal,
		m.TasksDroppedTotal,
		m.EventsPublishedTotal,
		m.CaptureBatchesTotal,
		m.ChargesExpiredTotal,
	)

	return m
}

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// OrderMetrics captures order mutation health on the Prometheus endpoint.
type OrderMetrics struct {
	mutations  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	lockWait   *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

// NewOrderMetrics registers the collectors on registerer, or on the default
// registry when nil.
func NewOrderMetrics(registerer prometheus.Registerer, cfg Config) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := prometheus.Labels{
		"service": defaultString(cfg.ServiceName, "orderdesk"),
		"env":     defaultString(cfg.Environment, "unknown"),
	}

	m := &OrderMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderdesk_order_mutations_total",
			Help:        "Order create, update and delete attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderdesk_order_rejections_total",
			Help:        "Rolled back order mutations by error kind.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderdesk_booking_lock_wait_seconds",
			Help:        "Time spent acquiring booking locks before the transaction starts.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"backend"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderdesk_order_mutation_duration_seconds",
			Help:        "Order mutation latency including lock wait.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"operation"}),
	}

	registerer.MustRegister(m.mutations, m.rejections, m.lockWait, m.duration)
	return m
}

func (m *OrderMetrics) ObserveMutation(operation, outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if outcome == OutcomeRolledBack {
		m.rejections.WithLabelValues(operation, defaultString(reason, "unknown")).Inc()
	}
}

func (m *OrderMetrics) ObserveLockWait(backend string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(defaultString(backend, "unknown")).Observe(elapsed.Seconds())
}

func defaultString(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks storage operation outcomes per provider.
type Metrics struct {
	operations   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	bytesMoved   *prometheus.CounterVec
	failovers    *prometheus.CounterVec
	healthStatus *prometheus.GaugeVec
}

// NewMetrics creates the storage metric collectors and registers them
// with reg. A nil registerer leaves the collectors unregistered, which
// is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediapipe_storage_operations_total",
			Help: "Total storage operations by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediapipe_storage_errors_total",
			Help: "Total storage errors by provider and operation.",
		}, []string{"provider", "operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediapipe_storage_operation_duration_seconds",
			Help:    "Storage operation latency by provider and operation.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"provider", "operation"}),
		bytesMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediapipe_storage_bytes_total",
			Help: "Bytes uploaded and downloaded by provider and direction.",
		}, []string{"provider", "direction"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediapipe_storage_failovers_total",
			Help: "Failover events by source and target provider.",
		}, []string{"from", "to"}),
		healthStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mediapipe_storage_provider_healthy",
			Help: "Provider health as reported by the last health check (1 healthy, 0 unhealthy).",
		}, []string{"provider"}),
	}

	if reg != nil {
		reg.MustRegister(m.operations, m.errors, m.duration, m.bytesMoved, m.failovers, m.healthStatus)
	}
	return m
}

// ObserveOperation records the outcome and latency of one storage operation.
func (m *Metrics) ObserveOperation(provider, operation string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(provider, operation).Inc()
	}
	m.operations.WithLabelValues(provider, operation, outcome).Inc()
	m.duration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// AddBytes records payload volume for uploads ("in") and downloads ("out").
func (m *Metrics) AddBytes(provider, direction string, n int) {
	m.bytesMoved.WithLabelValues(provider, direction).Add(float64(n))
}

// RecordFailover counts a switch from one provider to another.
func (m *Metrics) RecordFailover(from, to string) {
	m.failovers.WithLabelValues(from, to).Inc()
}

// SetHealth records the result of a provider health check.
func (m *Metrics) SetHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.healthStatus.WithLabelValues(provider).Set(value)
}

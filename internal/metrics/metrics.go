// Package metrics defines the Prometheus metrics exported by the zoo core.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zoo"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Guarded operations
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Authentication
	AuthAttemptsTotal *prometheus.CounterVec

	// Database pool
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
}

// New creates and registers all metrics with registry
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of guarded operations, by entity, action and outcome",
			},
			[]string{"entity", "action", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of guarded operations including the audit append",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entity", "action"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of login attempts, by result",
			},
			[]string{"result"},
		),
		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Number of established database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections currently in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.AuthAttemptsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
	)

	return m
}

// Nop returns metrics registered with a throwaway registry
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveOperation records the outcome and duration of a guarded operation
func (m *Metrics) ObserveOperation(entity, action, outcome string, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(entity, action, outcome).Inc()
	m.OperationDuration.WithLabelValues(entity, action).Observe(elapsed.Seconds())
}

// ObserveAuth records a login attempt
func (m *Metrics) ObserveAuth(result string) {
	m.AuthAttemptsTotal.WithLabelValues(result).Inc()
}

// SetDBStats copies pool statistics into the connection gauges
func (m *Metrics) SetDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// Handler returns the /metrics handler for registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

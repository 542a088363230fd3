// Package metrics registers the Prometheus collectors of the workbench.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the workbench collectors.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DatasetsLoaded    *prometheus.CounterVec
	DatasetRows       prometheus.Histogram
	ExportsTotal      *prometheus.CounterVec
	ActiveLoads       prometheus.Gauge
	SessionsSwept     prometheus.Counter
}

// Get returns the process-wide collectors, registering them on first use.
//
// Metrics:
//   - workbench_operations_total{operation,status}
//   - workbench_operation_duration_seconds{operation}
//   - workbench_datasets_loaded_total{file_type}
//   - workbench_dataset_rows
//   - workbench_exports_total{format}
//   - workbench_active_loads
//   - workbench_sessions_swept_total
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{
			OperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "workbench_operations_total",
					Help: "Workbench operations by outcome",
				},
				[]string{"operation", "status"},
			),
			OperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "workbench_operation_duration_seconds",
					Help:    "Duration of workbench operations in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
				},
				[]string{"operation"},
			),
			DatasetsLoaded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "workbench_datasets_loaded_total",
					Help: "Datasets loaded into a session",
				},
				[]string{"file_type"},
			),
			DatasetRows: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "workbench_dataset_rows",
					Help:    "Row count of loaded datasets",
					Buckets: prometheus.ExponentialBuckets(10, 10, 7),
				},
			),
			ExportsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "workbench_exports_total",
					Help: "Export payloads built",
				},
				[]string{"format"},
			),
			ActiveLoads: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "workbench_active_loads",
					Help: "Uploads currently being parsed",
				},
			),
			SessionsSwept: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "workbench_sessions_swept_total",
					Help: "Idle sessions removed by maintenance",
				},
			),
		}
	})
	return global
}

// Observe records the outcome and duration of one operation.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

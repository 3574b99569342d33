// Package metrics provides Prometheus metrics for the rmp server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry for all rmp metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ServerMetrics holds all Prometheus metrics for a record server.
type ServerMetrics struct {
	Requests        *prometheus.CounterVec   // labels: command, status
	RequestDuration *prometheus.HistogramVec // labels: command
	ProtocolErrors  *prometheus.CounterVec   // labels: stage
	StorageErrors   prometheus.Counter
	LockWait        prometheus.Histogram
	LockSlots       prometheus.Gauge // hashes held or awaited
	BusyWorkers     prometheus.Gauge
	Workers         prometheus.Gauge
}

// InitServerMetrics registers the server metrics on reg. Pass Registry for
// the process-wide metrics endpoint; tests and embedded servers can pass a
// private registry so several servers may coexist in one process.
func InitServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	return &ServerMetrics{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rmp_requests_total",
			Help: "Requests handled, by command and response status",
		}, []string{"command", "status"}),
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rmp_request_duration_seconds",
			Help:    "Time from decoded request to written response",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"command"}),
		ProtocolErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rmp_protocol_errors_total",
			Help: "Malformed or incomplete frames, by the stage that failed",
		}, []string{"stage"}),
		StorageErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rmp_storage_errors_total",
			Help: "Bucket files that could not be read, parsed or written",
		}),
		LockWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "rmp_lock_wait_seconds",
			Help:    "Time spent waiting for a bucket lock",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		LockSlots: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rmp_lock_table_slots",
			Help: "Bucket hashes currently held or waited on",
		}),
		BusyWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rmp_busy_workers",
			Help: "Workers currently serving a connection",
		}),
		Workers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rmp_workers",
			Help: "Size of the worker pool",
		}),
	}
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Package metrics holds the Prometheus collectors of the catalog service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shop_catalog"

// Operation outcomes used as the "status" label.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusConflict = "conflict"
)

// Metrics groups every collector the service records into.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	importedItems     prometheus.Counter
	importBatchSize   prometheus.Histogram
	subtreeSize       *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Labels: operation (import, delete, node, sales, statistic), status
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Duration of catalog operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation", "status"}),

		importedItems: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "items_total",
			Help:      "Total items written by committed imports",
		}),

		importBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batch_size",
			Help:      "Number of items per committed import batch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		// Labels: operation (node, statistic)
		subtreeSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "subtree_snapshots",
			Help:      "Number of snapshots loaded to answer a subtree query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"operation"}),

		// Labels: result (hit, miss, error)
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Tree cache lookups by result",
		}, []string{"result"}),

		// Labels: route (chi route pattern), method
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		// Labels: route, method, code
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
	}
}

// ObserveOperation records the duration of a catalog operation.
func (m *Metrics) ObserveOperation(operation, status string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// ObserveImport records a committed batch of n items.
func (m *Metrics) ObserveImport(n int) {
	m.importedItems.Add(float64(n))
	m.importBatchSize.Observe(float64(n))
}

// ObserveSubtree records how many snapshots a subtree query loaded.
func (m *Metrics) ObserveSubtree(operation string, n int) {
	m.subtreeSize.WithLabelValues(operation).Observe(float64(n))
}

// CacheLookup counts one tree cache lookup.
func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

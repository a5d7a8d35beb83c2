// Package metrics registers Prometheus collectors for the HTTP surface, the
// optimistic-write loop, streaming connections, and the storage layer.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal *prometheus.CounterVec
	casConflictsTotal *prometheus.CounterVec
	sseConnections    prometheus.Gauge
	storeReadSeconds  prometheus.Histogram
	storeWriteSeconds prometheus.Histogram
	registerOnce      sync.Once
)

// Register initializes collectors on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qae",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the Q&A API.",
		}, []string{"method", "path", "status"})
		casConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qae",
			Name:      "cas_conflicts_total",
			Help:      "Conditional writes rejected due to a concurrent writer.",
		}, []string{"resource"})
		sseConnections = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "qae",
			Name:      "sse_active_connections",
			Help:      "Currently open streaming connections.",
		})
		storeReadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qae",
			Name:      "store_read_seconds",
			Help:      "Latency of storage reads.",
			Buckets:   prometheus.DefBuckets,
		})
		storeWriteSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qae",
			Name:      "store_write_seconds",
			Help:      "Latency of storage writes.",
			Buckets:   prometheus.DefBuckets,
		})
	})
}

// IncRequest increments the http_requests_total counter.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IncCASConflict counts a rejected conditional write for the given resource
// ("questions" or "presence").
func IncCASConflict(resource string) {
	if casConflictsTotal == nil {
		return
	}
	casConflictsTotal.WithLabelValues(resource).Inc()
}

// StreamOpened and StreamClosed track the active-connection gauge.
func StreamOpened() {
	if sseConnections != nil {
		sseConnections.Inc()
	}
}

func StreamClosed() {
	if sseConnections != nil {
		sseConnections.Dec()
	}
}

// StoreHook implements the storage layer's MetricsHook.
type StoreHook struct{}

func (StoreHook) ObserveWrite(elapsed time.Duration, _ int) {
	if storeWriteSeconds != nil {
		storeWriteSeconds.Observe(elapsed.Seconds())
	}
}

func (StoreHook) ObserveRead(elapsed time.Duration, _ int) {
	if storeReadSeconds != nil {
		storeReadSeconds.Observe(elapsed.Seconds())
	}
}

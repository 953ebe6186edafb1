// Package metrics exposes Prometheus instrumentation for the crawl engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered for a single engine instance.
type Metrics struct {
	RequestsDispatched *prometheus.CounterVec
	RequestFailures    *prometheus.CounterVec
	ProductsCompleted  prometheus.Counter
	ProductsFailed     prometheus.Counter
	DirectoriesDone    prometheus.Counter
	PendingRequests    prometheus.Gauge
	ActiveWorkers      prometheus.Gauge
	FetchDuration      prometheus.Histogram
}

// New registers the crawl collectors on reg and returns them.
// Pass prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogcrawl",
			Name:      "requests_dispatched_total",
			Help:      "Requests handed to workers, labelled by request kind.",
		}, []string{"kind"}),
		RequestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogcrawl",
			Name:      "request_failures_total",
			Help:      "Requests that exhausted all fetch attempts, labelled by request kind.",
		}, []string{"kind"}),
		ProductsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogcrawl",
			Name:      "products_completed_total",
			Help:      "Product pages fetched, extracted and persisted.",
		}),
		ProductsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogcrawl",
			Name:      "products_failed_total",
			Help:      "Product pages that could not be processed.",
		}),
		DirectoriesDone: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogcrawl",
			Name:      "directories_completed_total",
			Help:      "Directories whose every discovered product reached a terminal state.",
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalogcrawl",
			Name:      "pending_requests",
			Help:      "Requests currently buffered and waiting for dispatch.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalogcrawl",
			Name:      "active_workers",
			Help:      "Workers currently processing a request.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catalogcrawl",
			Name:      "fetch_duration_seconds",
			Help:      "Wall time spent fetching a single page.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Package metrics exposes pipeline and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the process. It implements vectorstore.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	opLatency     *prometheus.HistogramVec
	snapshotBytes prometheus.Gauge
	chunksAdded   prometheus.Counter
	fallbacks     prometheus.Counter
	retrieved     prometheus.Histogram
}

// New creates the collectors and registers them, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdfrag_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdfrag_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdfrag_index_operation_duration_seconds",
			Help:    "Latency of index operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pdfrag_index_snapshot_bytes",
			Help: "Size of the last persisted index snapshot.",
		}),
		chunksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdfrag_chunks_ingested_total",
			Help: "Chunks added to the index.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdfrag_index_load_fallbacks_total",
			Help: "Unreadable snapshots replaced by a fresh index.",
		}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdfrag_retrieved_chunks",
			Help:    "Chunks returned per retrieval.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.opLatency,
		m.snapshotBytes,
		m.chunksAdded,
		m.fallbacks,
		m.retrieved,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{Registry: m.Registry()})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, code string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) OnPersist(d time.Duration, bytes int, err error) {
	m.opLatency.WithLabelValues("persist", status(err)).Observe(d.Seconds())
	if err == nil {
		m.snapshotBytes.Set(float64(bytes))
	}
}

func (m *Metrics) OnAdd(entries int) {
	m.chunksAdded.Add(float64(entries))
}

func (m *Metrics) OnRetrieve(d time.Duration, results int, err error) {
	m.opLatency.WithLabelValues("retrieve", status(err)).Observe(d.Seconds())
	if err == nil {
		m.retrieved.Observe(float64(results))
	}
}

func (m *Metrics) OnLoadFallback(error) {
	m.fallbacks.Inc()
}

// Package metrics exposes Prometheus instruments for the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finca"

// Metrics groups the service's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	attachmentBytes prometheus.Histogram
	orphanedBlobs   *prometheus.CounterVec
	dashboardCache  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	workerMessages  *prometheus.CounterVec
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_mutations_total",
			Help:      "Ledger mutations by collection, action and result.",
		}, []string{"collection", "action", "result"}),
		attachmentBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attachment_size_bytes",
			Help:      "Size of accepted attachments.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		}),
		orphanedBlobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_blobs_total",
			Help:      "Blobs left without an attachment record, by outcome.",
		}, []string{"outcome"}),
		dashboardCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_cache_total",
			Help:      "Dashboard cache lookups by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		workerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_total",
			Help:      "Messages handled by the worker by queue and result.",
		}, []string{"queue", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations,
		m.attachmentBytes,
		m.orphanedBlobs,
		m.dashboardCache,
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
		m.workerMessages,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Mutation(collection, action string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(collection, action, result(err)).Inc()
}

func (m *Metrics) AttachmentStored(size int64) {
	if m == nil {
		return
	}
	m.attachmentBytes.Observe(float64(size))
}

// OrphanedBlob counts a blob left behind; outcome is compensated, queued or lost.
func (m *Metrics) OrphanedBlob(outcome string) {
	if m == nil {
		return
	}
	m.orphanedBlobs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DashboardCache(hit bool) {
	if m == nil {
		return
	}
	r := "miss"
	if hit {
		r = "hit"
	}
	m.dashboardCache.WithLabelValues(r).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) WorkerMessage(queue string, err error) {
	if m == nil {
		return
	}
	m.workerMessages.WithLabelValues(queue, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

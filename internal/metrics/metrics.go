// Package metrics exposes Prometheus collectors for the binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogscript"

// Message outcomes counted by the worker.
const (
	ResultIndexed   = "indexed"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
)

// Metrics holds every collector. The zero value is not usable; call New.
type Metrics struct {
	reg prometheus.Gatherer

	ImageLookups        *prometheus.CounterVec
	ImageLookupDuration *prometheus.HistogramVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	Messages     *prometheus.CounterVec
	RenderedSize prometheus.Histogram
	QualityScore prometheus.Histogram
}

// New registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated.
func New(reg interface {
	prometheus.Registerer
	prometheus.Gatherer
}) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,

		ImageLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_lookups_total",
			Help:      "Image provider lookups by source and result.",
		}, []string{"source", "result"}),
		ImageLookupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_lookup_duration_seconds",
			Help:      "Image provider lookup latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"source"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),

		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_total",
			Help:      "Consumed documents by outcome.",
		}, []string{"result"}),
		RenderedSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rendered_mdx_bytes",
			Help:      "Size of rendered MDX documents.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		}),
		QualityScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Quality check score of rendered documents, in percent.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}

// ObserveLookup records one image provider lookup.
func (m *Metrics) ObserveLookup(source string, found bool, err error, took time.Duration) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "hit"
	}
	m.ImageLookups.WithLabelValues(source, result).Inc()
	m.ImageLookupDuration.WithLabelValues(source).Observe(took.Seconds())
}

// ObserveMessage counts a worker outcome.
func (m *Metrics) ObserveMessage(result string) {
	m.Messages.WithLabelValues(result).Inc()
}

// ObserveRender records the size and score of a rendered document.
func (m *Metrics) ObserveRender(size int, score float64) {
	m.RenderedSize.Observe(float64(size))
	m.QualityScore.Observe(score)
}

// Middleware counts requests by their chi route pattern so that path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

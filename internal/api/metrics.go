package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dunamismax/pixelanime/internal/colorspace"
)

// Metrics is the API registry. It is built before the server so the color
// transformer can report through ObserveTransform.
type Metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	transformTotal    *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	uploadsTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelanime_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelanime_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelanime_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		transformTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelanime_color_transforms_total",
			Help: "Color transforms by kind and outcome.",
		}, []string{"kind", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelanime_color_transform_duration_seconds",
			Help:    "Color transform latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"kind"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelanime_uploads_total",
			Help: "Uploads by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.transformTotal,
		m.transformDuration,
		m.uploadsTotal,
	)
	return m
}

// ObserveTransform satisfies colorspace.Observer.
func (m *Metrics) ObserveTransform(kind colorspace.Kind, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.transformTotal.WithLabelValues(string(kind), outcome).Inc()
	if elapsed > 0 {
		m.transformDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

func routeLabel(path string) string {
	switch {
	case path == "/":
		return "/"
	case path == "/upload":
		return "/upload"
	case path == "/convert":
		return "/convert"
	case strings.HasPrefix(path, "/download/"):
		return "/download/{filename}"
	case strings.HasPrefix(path, "/static/images/"):
		return "/static/images/{filename}"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return "unmatched"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

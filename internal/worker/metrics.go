package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry         *prometheus.Registry
	sweepsTotal      *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	artifactsDeleted prometheus.Counter
	artifactsFailed  prometheus.Counter
	lastSweep        prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		sweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelanime_worker_sweeps_total",
			Help: "Retention sweeps by trigger and outcome.",
		}, []string{"reason", "status"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelanime_worker_sweep_duration_seconds",
			Help:    "Duration of each retention sweep.",
			Buckets: prometheus.DefBuckets,
		}),
		artifactsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelanime_retention_artifacts_deleted_total",
			Help: "Artifacts removed by retention.",
		}),
		artifactsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelanime_retention_artifacts_failed_total",
			Help: "Expired artifacts that could not be removed.",
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelanime_retention_last_sweep_timestamp_seconds",
			Help: "Unix time of the last successful sweep.",
		}),
	}

	registry.MustRegister(
		m.sweepsTotal,
		m.sweepDuration,
		m.artifactsDeleted,
		m.artifactsFailed,
		m.lastSweep,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

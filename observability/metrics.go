package observability

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvaluationsTotal counts project evaluations by outcome
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gomsbuild_evaluations_total",
			Help: "Total number of project evaluations by outcome",
		},
		[]string{"status"}, // success, failure
	)

	// EvaluationDuration tracks full evaluation duration in seconds
	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gomsbuild_evaluation_duration_seconds",
			Help:    "Project evaluation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to 3s
		},
		[]string{"tools_version"},
	)

	// ImportsResolvedTotal counts import resolutions by outcome
	ImportsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gomsbuild_imports_resolved_total",
			Help: "Total number of import resolutions by outcome",
		},
		[]string{"result"}, // loaded, duplicate, missing, circular
	)

	// DocumentCacheHitsTotal counts document cache hits
	DocumentCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gomsbuild_document_cache_hits_total",
			Help: "Total number of document cache hits",
		},
	)

	// DocumentCacheMissesTotal counts document cache misses
	DocumentCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gomsbuild_document_cache_misses_total",
			Help: "Total number of document cache misses",
		},
	)

	// DocumentCacheEntries tracks the current number of cached documents
	DocumentCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gomsbuild_document_cache_entries",
			Help: "Current number of cached project documents",
		},
	)

	// ProjectsLoaded tracks the number of projects held by collections
	ProjectsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gomsbuild_projects_loaded",
			Help: "Current number of loaded projects across all collections",
		},
	)

	// GlobExpansionsTotal counts wildcard expansions during evaluation
	GlobExpansionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gomsbuild_glob_expansions_total",
			Help: "Total number of wildcard expansions by site",
		},
		[]string{"site"}, // import, item
	)
)

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts an HTTP server exposing Prometheus metrics
func StartMetricsServer(addr string) error {
	http.Handle("/metrics", MetricsHandler())
	return http.ListenAndServe(addr, nil)
}

// GetCounterValue retrieves the current value of a counter metric with the given labels
// This is primarily intended for testing
func GetCounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	// Write metric to a DTO to read its value
	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}

	return 0, nil
}

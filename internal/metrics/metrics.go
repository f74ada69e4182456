// Package metrics provides the Prometheus registry of the prediction service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "race_time_predictor",
		Name:      "prediction_requests_total",
		Help:      "Total number of prediction requests",
	}, []string{"status"})
	SegmentPredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "race_time_predictor",
		Name:      "segment_predictions_total",
		Help:      "Total number of segment predictions by outcome",
	}, []string{"segment", "result"})
	PredictionLogPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "race_time_predictor",
		Name:      "prediction_log_pruned_total",
		Help:      "Total number of prediction log rows pruned",
	})
	MaintenanceJobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "race_time_predictor",
		Name:      "maintenance_job_runs_total",
		Help:      "Total number of scheduled maintenance job runs by outcome",
	}, []string{"job", "result"})
)

// Gauge metrics
var (
	ReferenceTableRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "race_time_predictor",
		Name:      "reference_table_rows",
		Help:      "Number of rows loaded per reference table",
	}, []string{"table"})
	ModelsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "race_time_predictor",
		Name:      "models_loaded",
		Help:      "Number of segment models loaded",
	})
)

// Histogram metrics
var (
	PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "race_time_predictor",
		Name:      "prediction_duration_seconds",
		Help:      "Duration of multi-segment prediction requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "race_time_predictor",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of API requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionRequestsTotal)
		registry.MustRegister(SegmentPredictionsTotal)
		registry.MustRegister(PredictionLogPrunedTotal)
		registry.MustRegister(MaintenanceJobRunsTotal)

		registry.MustRegister(ReferenceTableRows)
		registry.MustRegister(ModelsLoaded)

		registry.MustRegister(PredictionDuration)
		registry.MustRegister(HTTPRequestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. It also serves the metrics the
// ml and geo packages register on the default registry.
func Handler() http.Handler {
	gatherers := prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// RecordPrediction records the outcome of a multi-segment request.
func RecordPrediction(status string, durationSeconds float64) {
	PredictionRequestsTotal.WithLabelValues(status).Inc()
	PredictionDuration.Observe(durationSeconds)
}

// RecordSegment records the outcome of one segment prediction.
func RecordSegment(segment string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	SegmentPredictionsTotal.WithLabelValues(segment, result).Inc()
}

// RecordPruned records deleted prediction log rows.
func RecordPruned(rows int64) {
	PredictionLogPrunedTotal.Add(float64(rows))
}

// RecordJobRun records one run of a scheduled maintenance job.
func RecordJobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MaintenanceJobRunsTotal.WithLabelValues(job, result).Inc()
}

// UpdateReferenceRows sets the loaded row count of every reference table.
func UpdateReferenceRows(counts map[string]int) {
	for table, n := range counts {
		ReferenceTableRows.WithLabelValues(table).Set(float64(n))
	}
}

// UpdateModelsLoaded sets the number of usable segment models.
func UpdateModelsLoaded(n int) {
	ModelsLoaded.Set(float64(n))
}

// RecordHTTPRequest records API request latency.
func RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
}

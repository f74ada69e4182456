package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MLPredictionsTotal tracks total model evaluations
	MLPredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of model evaluations",
		},
		[]string{"backend", "cache_hit"},
	)

	// MLPredictionLatency tracks model evaluation latency
	MLPredictionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ml_prediction_latency_seconds",
			Help:    "Model evaluation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// MLCacheHitRatio tracks cache hit ratio
	MLCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_cache_hit_ratio",
			Help: "Remote model prediction cache hit ratio",
		},
	)

	// MLRemoteErrorsTotal tracks errors calling the remote ML service
	MLRemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_remote_errors_total",
			Help: "Total number of remote ML service errors",
		},
		[]string{"transport", "method", "error_type"},
	)

	// MLModelUp reports whether each segment model is loaded and reachable
	MLModelUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ml_model_up",
			Help: "Whether a segment model is available (1) or not (0)",
		},
		[]string{"segment"},
	)
)

package logger

import (
	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for prediction requests.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(baseLogger *logrus.Logger) *PredictionLogger {
	return &PredictionLogger{
		Entry: baseLogger.WithField("component", "prediction"),
	}
}

// LogSegmentPrediction logs a successful segment prediction.
func (pl *PredictionLogger) LogSegmentPrediction(requestID, segment string, featuresCount int, seconds, latencyMs float64) {
	pl.WithFields(logrus.Fields{
		"request_id":     requestID,
		"segment":        segment,
		"features_count": featuresCount,
		"seconds":        seconds,
		"latency_ms":     latencyMs,
	}).Info("Segment prediction completed")
}

// LogSegmentFailure logs a segment prediction that failed for a request
// scoped reason such as an unseen country.
func (pl *PredictionLogger) LogSegmentFailure(requestID, segment, errorReason string) {
	pl.WithFields(logrus.Fields{
		"request_id":   requestID,
		"segment":      segment,
		"error_reason": errorReason,
	}).Warn("Segment prediction failed")
}

// LogMissingFeature logs a model that declares a feature the pipeline cannot
// build. This is a deployment fault, not a bad request.
func (pl *PredictionLogger) LogMissingFeature(requestID, segment, modelName, feature string) {
	pl.WithFields(logrus.Fields{
		"request_id":   requestID,
		"segment":      segment,
		"model_name":   modelName,
		"feature":      feature,
		"config_fault": true,
	}).Error("Model declares a feature the pipeline cannot build")
}

// LogPredictionSet logs the outcome of a full multi-segment request.
func (pl *PredictionLogger) LogPredictionSet(requestID string, succeeded, failed int, latencyMs float64) {
	pl.WithFields(logrus.Fields{
		"request_id": requestID,
		"succeeded":  succeeded,
		"failed":     failed,
		"latency_ms": latencyMs,
	}).Info("Prediction request completed")
}

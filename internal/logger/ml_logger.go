package logger

import (
	"github.com/sirupsen/logrus"
)

// MLLogger provides dedicated logging for model lifecycle events.
type MLLogger struct {
	*logrus.Entry
}

// NewMLLogger creates a new ML logger.
func NewMLLogger(baseLogger *logrus.Logger) *MLLogger {
	return &MLLogger{
		Entry: baseLogger.WithField("component", "ml"),
	}
}

// LogModelLoaded logs a segment model becoming available.
func (ml *MLLogger) LogModelLoaded(segment, backend, modelName string, featuresCount int) {
	ml.WithFields(logrus.Fields{
		"segment":        segment,
		"backend":        backend,
		"model_name":     modelName,
		"features_count": featuresCount,
	}).Info("Model loaded")
}

// LogModelLoadFailed logs a segment model that could not be loaded. The
// segment stays unavailable while the others keep serving.
func (ml *MLLogger) LogModelLoadFailed(segment, backend string, err error) {
	ml.WithFields(logrus.Fields{
		"segment": segment,
		"backend": backend,
	}).WithError(err).Error("Model failed to load")
}

// LogModelProbe logs the result of a remote model health probe.
func (ml *MLLogger) LogModelProbe(segment string, healthy bool, latencyMs float64, err error) {
	entry := ml.WithFields(logrus.Fields{
		"segment":    segment,
		"healthy":    healthy,
		"latency_ms": latencyMs,
	})
	if err != nil {
		entry.WithError(err).Warn("Model probe failed")
		return
	}
	entry.Debug("Model probe succeeded")
}

package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogStartup records the configuration a process started with.
func (al *AuditLogger) LogStartup(environment, referenceSource string, backends map[string]string, distancePolicy string) {
	al.WithFields(logrus.Fields{
		"environment":      environment,
		"reference_source": referenceSource,
		"model_backends":   backends,
		"distance_policy":  distancePolicy,
	}).Info("Predictor started")
}

// LogReferenceDataChecked records a reference data validation run.
func (al *AuditLogger) LogReferenceDataChecked(source string, rowCounts map[string]int, err error) {
	entry := al.WithFields(logrus.Fields{
		"source":     source,
		"row_counts": rowCounts,
	})
	if err != nil {
		entry.WithError(err).Error("Reference data check failed")
		return
	}
	entry.Info("Reference data check passed")
}

// LogPredictionLogPruned records removal of old prediction log rows.
func (al *AuditLogger) LogPredictionLogPruned(cutoff time.Time, rowsDeleted int64) {
	al.WithFields(logrus.Fields{
		"cutoff":       cutoff.Unix(),
		"rows_deleted": rowsDeleted,
	}).Info("Prediction log pruned")
}

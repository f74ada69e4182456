package repository

import (
	"context"
	"time"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// PredictionLogRepository defines the interface for prediction log access
type PredictionLogRepository interface {
	InsertBatch(ctx context.Context, records []*models.PredictionRecord) error
	GetByRequestID(ctx context.Context, requestID string) ([]*models.PredictionRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CentroidRepository defines the interface for resolved country centroids
type CentroidRepository interface {
	GetCentroid(ctx context.Context, country string) (models.Coordinates, bool, error)
	PutCentroid(ctx context.Context, country string, c models.Coordinates) error
}

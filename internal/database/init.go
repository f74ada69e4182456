package database

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/config"
)

// Schema creates the tables owned by the service. Reference tables are
// created by the data pipeline that populates them.
const Schema = `
CREATE TABLE IF NOT EXISTS prediction_log (
    id UUID PRIMARY KEY,
    request_id UUID NOT NULL,
    segment TEXT NOT NULL,
    age INTEGER NOT NULL,
    gender TEXT NOT NULL,
    country TEXT NOT NULL,
    event_location TEXT NOT NULL,
    elite BOOLEAN NOT NULL,
    seconds DOUBLE PRECISION,
    error_reason TEXT,
    predicted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS prediction_log_predicted_at_idx ON prediction_log (predicted_at);

CREATE TABLE IF NOT EXISTS country_centroids (
    country TEXT PRIMARY KEY,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    resolved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Initialize creates a database connection pool and applies the service schema
func Initialize(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.ApplySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database connected")

	return db, nil
}

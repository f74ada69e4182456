package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-time-predictor/internal/database"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// PostgresCentroidRepository implements CentroidRepository for PostgreSQL
type PostgresCentroidRepository struct {
	db *database.DB
}

// NewPostgresCentroidRepository creates a new centroid repository
func NewPostgresCentroidRepository(db *database.DB) CentroidRepository {
	return &PostgresCentroidRepository{db: db}
}

// GetCentroid retrieves a stored country centroid
func (r *PostgresCentroidRepository) GetCentroid(ctx context.Context, country string) (models.Coordinates, bool, error) {
	var c models.Coordinates
	err := r.db.GetPool().QueryRow(ctx,
		`SELECT latitude, longitude FROM country_centroids WHERE country = $1`, country,
	).Scan(&c.Lat, &c.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Coordinates{}, false, nil
	}
	if err != nil {
		return models.Coordinates{}, false, fmt.Errorf("failed to get centroid: %w", err)
	}
	return c, true, nil
}

// PutCentroid stores or replaces a country centroid
func (r *PostgresCentroidRepository) PutCentroid(ctx context.Context, country string, c models.Coordinates) error {
	query := `
		INSERT INTO country_centroids (country, latitude, longitude, resolved_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (country) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, resolved_at = EXCLUDED.resolved_at
	`
	if _, err := r.db.GetPool().Exec(ctx, query, country, c.Lat, c.Lon); err != nil {
		return fmt.Errorf("failed to put centroid: %w", err)
	}
	return nil
}

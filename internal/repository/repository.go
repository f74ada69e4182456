package repository

import (
	"fmt"

	"github.com/yourusername/race-time-predictor/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	PredictionLog PredictionLogRepository
	Centroid      CentroidRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		PredictionLog: NewPostgresPredictionLogRepository(db),
		Centroid:      NewPostgresCentroidRepository(db),
	}, nil
}

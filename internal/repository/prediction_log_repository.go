package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-time-predictor/internal/database"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// PostgresPredictionLogRepository implements PredictionLogRepository for PostgreSQL
type PostgresPredictionLogRepository struct {
	db *database.DB
}

// NewPostgresPredictionLogRepository creates a new prediction log repository
func NewPostgresPredictionLogRepository(db *database.DB) PredictionLogRepository {
	return &PostgresPredictionLogRepository{db: db}
}

var predictionLogColumns = []string{
	"id", "request_id", "segment", "age", "gender", "country",
	"event_location", "elite", "seconds", "error_reason", "predicted_at",
}

// InsertBatch inserts the segment outcomes of a request using COPY
func (r *PostgresPredictionLogRepository) InsertBatch(ctx context.Context, records []*models.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = []interface{}{
			rec.ID, rec.RequestID, string(rec.Segment), rec.Age, string(rec.Gender), rec.Country,
			rec.EventLocation, rec.Elite, rec.Seconds, rec.ErrorReason, rec.PredictedAt,
		}
	}

	count, err := r.db.GetPool().CopyFrom(ctx, pgx.Identifier{"prediction_log"}, predictionLogColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to batch insert predictions: %w", err)
	}

	if count != int64(len(records)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(records))
	}

	return nil
}

// GetByRequestID retrieves the segment outcomes of one request
func (r *PostgresPredictionLogRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.PredictionRecord, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	query := `
		SELECT id, request_id, segment, age, gender, country, event_location, elite, seconds, error_reason, predicted_at
		FROM prediction_log
		WHERE request_id = $1
		ORDER BY segment
	`

	rows, err := r.db.GetPool().Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []*models.PredictionRecord
	for rows.Next() {
		rec := &models.PredictionRecord{}
		var segment, gender string
		err := rows.Scan(
			&rec.ID, &rec.RequestID, &segment, &rec.Age, &gender, &rec.Country,
			&rec.EventLocation, &rec.Elite, &rec.Seconds, &rec.ErrorReason, &rec.PredictedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		rec.Segment = models.Segment(segment)
		rec.Gender = models.Gender(gender)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, models.ErrNotFound
	}
	return records, nil
}

// PruneOlderThan deletes predictions made before cutoff
func (r *PostgresPredictionLogRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.GetPool().Exec(ctx, `DELETE FROM prediction_log WHERE predicted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune prediction log: %w", err)
	}
	return tag.RowsAffected(), nil
}

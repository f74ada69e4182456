package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/database"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// TestNewRepositoriesRequiresDB tests the nil database guard
func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

// TestPredictionLogRepository tests insert, lookup and pruning
func TestPredictionLogRepository(t *testing.T) {
	db := database.SetupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	requestID := uuid.New()
	seconds := 1834.57
	reason := "model unavailable"
	old := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Microsecond)

	records := []*models.PredictionRecord{
		{ID: uuid.New(), RequestID: requestID, Segment: models.SegmentSwim, Age: 30, Gender: models.GenderMale,
			Country: "Spain", EventLocation: "Barcelona", Seconds: &seconds, PredictedAt: old},
		{ID: uuid.New(), RequestID: requestID, Segment: models.SegmentTotal, Age: 30, Gender: models.GenderMale,
			Country: "Spain", EventLocation: "Barcelona", ErrorReason: &reason, PredictedAt: old},
	}
	require.NoError(t, repos.PredictionLog.InsertBatch(ctx, records))

	got, err := repos.PredictionLog.GetByRequestID(ctx, requestID.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, rec := range got {
		switch rec.Segment {
		case models.SegmentSwim:
			require.NotNil(t, rec.Seconds)
			assert.Equal(t, seconds, *rec.Seconds)
		case models.SegmentTotal:
			require.NotNil(t, rec.ErrorReason)
			assert.Equal(t, reason, *rec.ErrorReason)
		}
	}

	deleted, err := repos.PredictionLog.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(2))

	_, err = repos.PredictionLog.GetByRequestID(ctx, requestID.String())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

// TestCentroidRepository tests centroid upserts
func TestCentroidRepository(t *testing.T) {
	db := database.SetupTestDB(t)
	repo := NewPostgresCentroidRepository(db)
	ctx := context.Background()
	country := "Testland-" + uuid.NewString()

	_, found, err := repo.GetCentroid(ctx, country)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.PutCentroid(ctx, country, models.Coordinates{Lat: 1, Lon: 2}))
	require.NoError(t, repo.PutCentroid(ctx, country, models.Coordinates{Lat: 3, Lon: 4}))

	c, found, err := repo.GetCentroid(ctx, country)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.Coordinates{Lat: 3, Lon: 4}, c)
}

// TestGetByRequestIDInvalid tests rejection of malformed request ids
func TestGetByRequestIDInvalid(t *testing.T) {
	repo := NewPostgresPredictionLogRepository(&database.DB{})
	_, err := repo.GetByRequestID(context.Background(), "not-a-uuid")
	assert.Error(t, err)
}

package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// TestBand tests floor selection of the age band
func TestBand(t *testing.T) {
	tests := []struct {
		age       int
		wantBand  int
		wantGroup string
	}{
		{age: 0, wantBand: 0, wantGroup: "00"},
		{age: 17, wantBand: 0, wantGroup: "00"},
		{age: 18, wantBand: 18, wantGroup: "18-24"},
		{age: 24, wantBand: 18, wantGroup: "18-24"},
		{age: 25, wantBand: 25, wantGroup: "25-29"},
		{age: 30, wantBand: 30, wantGroup: "30-34"},
		{age: 49, wantBand: 45, wantGroup: "45-49"},
		{age: 84, wantBand: 80, wantGroup: "80-84"},
		{age: 85, wantBand: 85, wantGroup: "85-89"},
		{age: 120, wantBand: 85, wantGroup: "85-89"},
	}

	for _, tt := range tests {
		band, group, err := Band(tt.age, false)
		require.NoError(t, err)
		assert.Equal(t, tt.wantBand, band, "age %d", tt.age)
		assert.Equal(t, tt.wantGroup, group, "age %d", tt.age)
	}
}

// TestBandMatchesGreatestThreshold checks every age against a direct scan of the thresholds
func TestBandMatchesGreatestThreshold(t *testing.T) {
	for age := 0; age <= 100; age++ {
		want := 0
		for _, limit := range ageLimits {
			if limit <= age && limit > want {
				want = limit
			}
		}
		band, _, err := Band(age, false)
		require.NoError(t, err)
		assert.Equal(t, want, band, "age %d", age)
	}
}

// TestBandElite tests that elite athletes ignore their age
func TestBandElite(t *testing.T) {
	for _, age := range []int{0, 17, 30, 50, 85, 99} {
		band, group, err := Band(age, true)
		require.NoError(t, err)
		assert.Equal(t, 0, band)
		assert.Equal(t, EliteAgeGroup, group)
	}
}

// TestBandNegativeAge tests rejection of negative ages
func TestBandNegativeAge(t *testing.T) {
	_, _, err := Band(-1, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidAge))

	var inputErr *models.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "age", inputErr.Field)

	_, _, err = Band(-1, true)
	assert.True(t, errors.Is(err, models.ErrInvalidAge))
}

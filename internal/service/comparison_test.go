package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// TestCompare tests percentile placement among historical times
func TestCompare(t *testing.T) {
	c := NewComparisonService(newTestTables())

	got := c.Compare(models.SegmentSwim, "Barcelona", 1800)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.SampleSize)
	assert.Equal(t, 50.0, got.Percentile)
	assert.LessOrEqual(t, got.P25, got.Median)
	assert.LessOrEqual(t, got.Median, got.P75)
	assert.GreaterOrEqual(t, got.P25, 1500.0)
	assert.LessOrEqual(t, got.P75, 2100.0)

	got = c.Compare(models.SegmentSwim, "Barcelona", 1000)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, got.Percentile)

	got = c.Compare(models.SegmentSwim, "Barcelona", 3000)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, got.Percentile)
}

// TestCompareSkipsMissingTimes tests that results without a time are ignored
func TestCompareSkipsMissingTimes(t *testing.T) {
	c := NewComparisonService(newTestTables())

	run := c.Compare(models.SegmentRun, "Barcelona", 5400)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.SampleSize)

	total := c.Compare(models.SegmentTotal, "Barcelona", 16000)
	require.NotNil(t, total)
	assert.Equal(t, 3, total.SampleSize)
	assert.InDelta(t, 100.0/3, total.Percentile, 0.01)
}

// TestCompareNoHistory tests locations without recorded results
func TestCompareNoHistory(t *testing.T) {
	c := NewComparisonService(newTestTables())
	assert.Nil(t, c.Compare(models.SegmentSwim, "Nice", 1800))
}

package service

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// ComparisonService places predicted times within the historical results of
// the same event location
type ComparisonService struct {
	byLocation map[string][]models.HistoricalResult
}

// NewComparisonService indexes the historical results by event location
func NewComparisonService(tables *models.ReferenceTables) *ComparisonService {
	byLocation := make(map[string][]models.HistoricalResult)
	for _, r := range tables.HistoricalResults {
		byLocation[r.EventLocation] = append(byLocation[r.EventLocation], r)
	}
	return &ComparisonService{byLocation: byLocation}
}

// Compare returns where seconds falls among the recorded times of a segment
// at a location, or nil when there is no history. Results missing the
// segment's time are skipped.
func (c *ComparisonService) Compare(segment models.Segment, location string, seconds float64) *models.Comparison {
	results := c.byLocation[location]
	times := make([]float64, 0, len(results))
	for _, r := range results {
		if t := r.Time(segment); !math.IsNaN(t) && !math.IsInf(t, 0) {
			times = append(times, t)
		}
	}
	if len(times) == 0 {
		return nil
	}
	sort.Float64s(times)

	return &models.Comparison{
		SampleSize: len(times),
		Percentile: round2(100 * stat.CDF(seconds, stat.Empirical, times, nil)),
		P25:        round2(stat.Quantile(0.25, stat.Empirical, times, nil)),
		Median:     round2(stat.Quantile(0.5, stat.Empirical, times, nil)),
		P75:        round2(stat.Quantile(0.75, stat.Empirical, times, nil)),
	}
}

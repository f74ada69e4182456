package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureRow is the model input for one query, aligned to a model's declared
// feature order
type FeatureRow struct {
	Names  []string
	Values []float64
}

// Get retrieves a feature value by name
func (r FeatureRow) Get(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Len returns the number of features in the row
func (r FeatureRow) Len() int {
	return len(r.Values)
}

// SegmentPrediction is the outcome of one segment's model
type SegmentPrediction struct {
	Segment    Segment     `json:"segment"`
	Seconds    float64     `json:"seconds,omitempty"`
	Error      string      `json:"error,omitempty"`
	Comparison *Comparison `json:"comparison,omitempty"`
	Err        error       `json:"-"`
}

// OK checks if the segment produced a prediction
func (p SegmentPrediction) OK() bool {
	return p.Err == nil
}

// Comparison places a predicted time within the historical results of the
// same event location
type Comparison struct {
	SampleSize int     `json:"sample_size"`
	Percentile float64 `json:"percentile"`
	P25        float64 `json:"p25"`
	Median     float64 `json:"median"`
	P75        float64 `json:"p75"`
}

// PredictionSet holds the per-segment outcomes of one query
type PredictionSet struct {
	ID            uuid.UUID                     `json:"id"`
	Query         AthleteQuery                  `json:"query"`
	Segments      map[Segment]SegmentPrediction `json:"segments"`
	SumOfSegments *float64                      `json:"sum_of_segments,omitempty"`
	PredictedAt   time.Time                     `json:"predicted_at"`
}

// Seconds returns the prediction of a segment if it succeeded
func (s *PredictionSet) Seconds(segment Segment) (float64, bool) {
	p, ok := s.Segments[segment]
	if !ok || !p.OK() {
		return 0, false
	}
	return p.Seconds, true
}

// PredictionRecord is the persisted form of a segment prediction
type PredictionRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RequestID     uuid.UUID `db:"request_id" json:"request_id"`
	Segment       Segment   `db:"segment" json:"segment"`
	Age           int       `db:"age" json:"age"`
	Gender        Gender    `db:"gender" json:"gender"`
	Country       string    `db:"country" json:"country"`
	EventLocation string    `db:"event_location" json:"event_location"`
	Elite         bool      `db:"elite" json:"elite"`
	Seconds       *float64  `db:"seconds" json:"seconds,omitempty"`
	ErrorReason   *string   `db:"error_reason" json:"error_reason,omitempty"`
	PredictedAt   time.Time `db:"predicted_at" json:"predicted_at"`
}

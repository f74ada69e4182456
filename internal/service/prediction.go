// Package service provides the prediction workflow on top of the feature
// pipeline and the segment models.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/features"
	"github.com/yourusername/race-time-predictor/internal/logger"
	"github.com/yourusername/race-time-predictor/internal/ml"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// ModelSource resolves the model serving a segment
type ModelSource interface {
	Model(segment models.Segment) (ml.Model, error)
}

// Assembler builds the feature row a model expects for a query
type Assembler interface {
	Assemble(ctx context.Context, query models.AthleteQuery, schema features.Schema) (models.FeatureRow, error)
}

// PredictionLogWriter persists prediction outcomes
type PredictionLogWriter interface {
	InsertBatch(ctx context.Context, records []*models.PredictionRecord) error
}

// PredictionService predicts segment durations for athlete queries
type PredictionService struct {
	models     ModelSource
	assembler  Assembler
	comparison *ComparisonService
	logWriter  PredictionLogWriter
	predLogger *logger.PredictionLogger
	logger     *logrus.Entry
}

// NewPredictionService creates a new prediction service. comparison and
// logWriter are optional.
func NewPredictionService(
	source ModelSource,
	assembler Assembler,
	comparison *ComparisonService,
	logWriter PredictionLogWriter,
	log *logrus.Logger,
) *PredictionService {
	return &PredictionService{
		models:     source,
		assembler:  assembler,
		comparison: comparison,
		logWriter:  logWriter,
		predLogger: logger.NewPredictionLogger(log),
		logger:     log.WithField("component", "service"),
	}
}

// Predict returns the predicted duration of one segment in seconds, rounded to
// two decimal places
func (s *PredictionService) Predict(ctx context.Context, segment models.Segment, query models.AthleteQuery) (float64, error) {
	return s.predict(ctx, uuid.New().String(), segment, query)
}

// PredictAll runs every segment independently. A failing segment carries its
// error and does not stop the others. Only an invalid query fails the request.
func (s *PredictionService) PredictAll(ctx context.Context, query models.AthleteQuery) (*models.PredictionSet, error) {
	query, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	set := &models.PredictionSet{
		ID:          uuid.New(),
		Query:       query,
		Segments:    make(map[models.Segment]models.SegmentPrediction, len(models.AllSegments)),
		PredictedAt: time.Now().UTC(),
	}
	requestID := set.ID.String()

	succeeded, failed := 0, 0
	for _, segment := range models.AllSegments {
		result := models.SegmentPrediction{Segment: segment}
		seconds, err := s.predict(ctx, requestID, segment, query)
		if err != nil {
			result.Err = err
			result.Error = err.Error()
			failed++
		} else {
			result.Seconds = seconds
			if s.comparison != nil {
				result.Comparison = s.comparison.Compare(segment, query.EventLocation, seconds)
			}
			succeeded++
		}
		set.Segments[segment] = result
	}

	set.SumOfSegments = sumOfLegs(set)

	s.predLogger.LogPredictionSet(requestID, succeeded, failed, msSince(start))
	s.record(ctx, set)

	return set, nil
}

func (s *PredictionService) predict(ctx context.Context, requestID string, segment models.Segment, query models.AthleteQuery) (float64, error) {
	start := time.Now()

	model, err := s.models.Model(segment)
	if err != nil {
		s.predLogger.LogSegmentFailure(requestID, string(segment), err.Error())
		return 0, err
	}

	row, err := s.assembler.Assemble(ctx, query, model)
	if err == nil {
		err = checkAlignment(model, row)
	}
	if err != nil {
		var missing *models.MissingFeatureError
		if errors.As(err, &missing) {
			s.predLogger.LogMissingFeature(requestID, string(segment), missing.Model, missing.Feature)
		} else {
			s.predLogger.LogSegmentFailure(requestID, string(segment), err.Error())
		}
		return 0, &models.FeatureAssemblyError{Segment: segment, Err: err}
	}

	raw, err := model.Predict(ctx, row.Values)
	if err != nil {
		s.predLogger.LogSegmentFailure(requestID, string(segment), err.Error())
		return 0, fmt.Errorf("predict %s: %w", segment, err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		err := fmt.Errorf("predict %s: %w: model returned %v", segment, ml.ErrInvalidPrediction, raw)
		s.predLogger.LogSegmentFailure(requestID, string(segment), err.Error())
		return 0, err
	}

	seconds := round2(raw)
	s.predLogger.LogSegmentPrediction(requestID, string(segment), row.Len(), seconds, msSince(start))
	return seconds, nil
}

// checkAlignment guards the model input against a row built for another schema
func checkAlignment(model ml.Model, row models.FeatureRow) error {
	names := model.FeatureNames()
	if len(names) != len(row.Names) || len(row.Names) != len(row.Values) {
		return fmt.Errorf("%w: row has %d features, model %s declares %d", ml.ErrFeatureCount, len(row.Values), model.Name(), len(names))
	}
	for i, name := range names {
		if row.Names[i] != name {
			return fmt.Errorf("%w: position %d is %q, model %s declares %q", ml.ErrFeatureCount, i, row.Names[i], model.Name(), name)
		}
	}
	return nil
}

func (s *PredictionService) record(ctx context.Context, set *models.PredictionSet) {
	if s.logWriter == nil {
		return
	}

	records := make([]*models.PredictionRecord, 0, len(set.Segments))
	for _, segment := range models.AllSegments {
		p, ok := set.Segments[segment]
		if !ok {
			continue
		}
		rec := &models.PredictionRecord{
			ID:            uuid.New(),
			RequestID:     set.ID,
			Segment:       segment,
			Age:           set.Query.Age,
			Gender:        set.Query.Gender,
			Country:       set.Query.Country,
			EventLocation: set.Query.EventLocation,
			Elite:         set.Query.IsElite,
			PredictedAt:   set.PredictedAt,
		}
		if p.OK() {
			seconds := p.Seconds
			rec.Seconds = &seconds
		} else {
			reason := p.Error
			rec.ErrorReason = &reason
		}
		records = append(records, rec)
	}

	if err := s.logWriter.InsertBatch(ctx, records); err != nil {
		s.logger.WithError(err).WithField("request_id", set.ID).Warn("Failed to record predictions")
	}
}

// NormalizeQuery validates the request-level fields of a query
func NormalizeQuery(query models.AthleteQuery) (models.AthleteQuery, error) {
	gender, err := models.ParseGender(string(query.Gender))
	if err != nil {
		return query, err
	}
	query.Gender = gender
	if query.Age < 0 {
		return query, &models.InputError{Field: "age", Value: query.Age, Err: models.ErrInvalidAge}
	}
	return query, nil
}

func sumOfLegs(set *models.PredictionSet) *float64 {
	total := decimal.Zero
	for _, segment := range []models.Segment{models.SegmentSwim, models.SegmentBike, models.SegmentRun} {
		seconds, ok := set.Seconds(segment)
		if !ok {
			return nil
		}
		total = total.Add(decimal.NewFromFloat(seconds))
	}
	sum := total.Round(2).InexactFloat64()
	return &sum
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/config"
	"github.com/yourusername/race-time-predictor/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fileConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "predictor", Environment: "development", LogLevel: "error"},
		ReferenceData: config.ReferenceDataConfig{
			Source: "csv",
			Dir:    "../../internal/refdata/testdata",
		},
		Models: config.ModelsConfig{
			Dir: "../../internal/ml/testdata",
			Segments: map[string]config.ModelConfig{
				"swim": {Backend: "xgboost", Path: "swim_model.json"},
			},
		},
		Geocoding: config.GeocodingConfig{
			Provider:      "static",
			CentroidsFile: "../../internal/geo/testdata/centroids.csv",
		},
		Distance: config.DistanceConfig{OnUnavailable: "fail"},
	}
}

// TestBuildPipelineFromFiles tests the wiring against the package test fixtures
func TestBuildPipelineFromFiles(t *testing.T) {
	ctx := context.Background()
	p, err := buildPipeline(ctx, fileConfig(), testLogger())
	require.NoError(t, err)
	defer p.Close()

	assert.Nil(t, p.db)
	assert.Equal(t, 1, p.registry.Loaded())

	query := models.AthleteQuery{Age: 35, Gender: "M", Country: "Spain", EventLocation: "Barcelona"}

	seconds, err := p.service.Predict(ctx, models.SegmentSwim, query)
	require.NoError(t, err)
	assert.InDelta(t, 21.5, seconds, 1e-9)

	set, err := p.service.PredictAll(ctx, query)
	require.NoError(t, err)
	assert.True(t, set.Segments[models.SegmentSwim].OK())
	assert.True(t, errors.Is(set.Segments[models.SegmentBike].Err, models.ErrModelUnavailable))
	assert.Nil(t, set.SumOfSegments)

	for _, entry := range p.registry.Entries() {
		assert.NoError(t, p.assembler.CheckSchema(entry.Model))
	}
}

// TestBuildPipelineErrors tests that misconfigured sources fail the build
func TestBuildPipelineErrors(t *testing.T) {
	ctx := context.Background()

	cfg := fileConfig()
	cfg.ReferenceData.Dir = "does-not-exist"
	_, err := buildPipeline(ctx, cfg, testLogger())
	assert.Error(t, err)

	cfg = fileConfig()
	cfg.Geocoding.CentroidsFile = "does-not-exist.csv"
	_, err = buildPipeline(ctx, cfg, testLogger())
	assert.Error(t, err)
}

// TestNewCentroidStore tests store selection without external services
func TestNewCentroidStore(t *testing.T) {
	p := &pipeline{}

	store, err := p.newCentroidStore(context.Background(), config.CentroidStoreConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = p.newCentroidStore(context.Background(), config.CentroidStoreConfig{Type: "postgres"})
	assert.Error(t, err)
}

// TestNewGeocoderNominatim tests the default provider
func TestNewGeocoderNominatim(t *testing.T) {
	g, err := newGeocoder(config.GeocodingConfig{Provider: "nominatim", RateLimit: 2}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "nominatim", g.Name())
}

package features

import (
	"fmt"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// Feature names produced by the assembler. Any other declared name is looked
// up among the sport-type catalog columns.
const (
	FeatureGenderM              = "Gender_M"
	FeatureCountryEncoded       = "Country_Encoded"
	FeatureEventLocationEncoded = "EventLocation_Encoded"
	FeatureEventCountryEncoded  = "EventCountry_Encoded"
	FeatureAgeBand              = "AgeBand"
	FeatureIsLocal              = "Is_Local"
	FeatureLatitude             = "Latitude"
	FeatureLongitude            = "Longitude"
	FeatureAltitude             = "Altitude (m)"
	FeatureAirTemperature       = "Air Temperature (°C)"
	FeatureWaterTemperature     = "Water Temperature (°C)"
	FeatureDistanceMeters       = "Distance from Country Center (m)"
	FeatureDistanceKilometers   = "Distance from Country Center (km)"
	FeatureDistance             = "DistanceFromCountryCenter"
)

// stage is one join or computation step of the pipeline
type stage uint

const (
	stageCountry stage = 1 << iota
	stageEventLocation
	stageHost
	stageEventCountry
	stageSportTypes
	stageDistance
)

type featureSpec struct {
	needs stage
	value func(s *state) float64
}

var catalog = map[string]featureSpec{
	FeatureGenderM:              {value: func(s *state) float64 { return s.genderM }},
	FeatureAgeBand:              {value: func(s *state) float64 { return float64(s.ageBand) }},
	FeatureCountryEncoded:       {needs: stageCountry, value: func(s *state) float64 { return s.countryEncoded }},
	FeatureEventLocationEncoded: {needs: stageEventLocation, value: func(s *state) float64 { return s.eventLocationEncoded }},
	FeatureEventCountryEncoded:  {needs: stageHost | stageEventCountry, value: func(s *state) float64 { return s.eventCountryEncoded }},
	FeatureIsLocal:              {needs: stageHost, value: func(s *state) float64 { return s.isLocal }},
	FeatureLatitude:             {needs: stageHost, value: func(s *state) float64 { return s.location.Latitude }},
	FeatureLongitude:            {needs: stageHost, value: func(s *state) float64 { return s.location.Longitude }},
	FeatureAltitude:             {needs: stageHost, value: func(s *state) float64 { return s.location.AltitudeMeters }},
	FeatureAirTemperature:       {needs: stageHost, value: func(s *state) float64 { return s.location.AvgAirTempC }},
	FeatureWaterTemperature:     {needs: stageHost, value: func(s *state) float64 { return s.location.AvgWaterTempC }},
	FeatureDistanceMeters:       {needs: stageHost | stageDistance, value: func(s *state) float64 { return s.distanceMeters }},
	FeatureDistance:             {needs: stageHost | stageDistance, value: func(s *state) float64 { return s.distanceMeters }},
	FeatureDistanceKilometers:   {needs: stageHost | stageDistance, value: func(s *state) float64 { return s.distanceMeters / 1000 }},
}

// categorical columns exist in the pipeline but cannot be fed to a numeric model
var categorical = map[string]bool{
	"AgeGroup":      true,
	"Gender":        true,
	"Country":       true,
	"EventLocation": true,
	"EventCountry":  true,
	"Swim Type":     true,
	"Bike Type":     true,
	"Run Type":      true,
}

// plan is the set of stages and per-column extractors needed by one schema
type plan struct {
	stages  stage
	columns []func(s *state) float64
}

func (p plan) has(st stage) bool {
	return p.stages&st != 0
}

// buildPlan resolves every declared feature name to an extractor. Unknown or
// categorical names fail before any join runs.
func buildPlan(model string, names []string, tables *models.ReferenceTables) (plan, error) {
	p := plan{columns: make([]func(s *state) float64, len(names))}
	for i, name := range names {
		if spec, ok := catalog[name]; ok {
			p.stages |= spec.needs
			p.columns[i] = spec.value
			continue
		}
		if categorical[name] {
			return plan{}, &models.MissingFeatureError{Model: model, Feature: name, Err: models.ErrNonNumericFeature}
		}
		if tables.HasSportTypeColumn(name) {
			column := name
			p.stages |= stageEventLocation | stageSportTypes
			p.columns[i] = func(s *state) float64 { return s.sportTypes.Values[column] }
			continue
		}
		return plan{}, &models.MissingFeatureError{Model: model, Feature: name}
	}
	if len(names) == 0 {
		return plan{}, &models.MissingFeatureError{Model: model, Err: fmt.Errorf("model declares no features")}
	}
	return p, nil
}

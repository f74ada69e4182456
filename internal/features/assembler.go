package features

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// Distance fallback policies
const (
	DistanceFail    = "fail"
	DistanceDefault = "default"
)

// Schema is the part of a model the assembler needs: its name and the ordered
// feature names it was trained on
type Schema interface {
	Name() string
	FeatureNames() []string
}

// DistanceResolver measures how far an event is from the centre of a country
type DistanceResolver interface {
	DistanceFromCountry(ctx context.Context, country string, event models.Coordinates) (float64, error)
}

// DistancePolicy decides what happens when the distance feature cannot be
// computed
type DistancePolicy struct {
	OnUnavailable string
	DefaultMeters float64
}

// Assembler builds feature rows by joining a query against the reference tables
type Assembler struct {
	tables   *models.ReferenceTables
	distance DistanceResolver
	policy   DistancePolicy
	logger   *logrus.Entry
}

// NewAssembler creates a new feature assembler. distance may be nil when no
// model declares a distance feature.
func NewAssembler(tables *models.ReferenceTables, distance DistanceResolver, policy DistancePolicy, logger *logrus.Logger) *Assembler {
	if policy.OnUnavailable == "" {
		policy.OnUnavailable = DistanceFail
	}
	return &Assembler{
		tables:   tables,
		distance: distance,
		policy:   policy,
		logger:   logger.WithField("component", "features"),
	}
}

// state carries intermediate join results between pipeline steps
type state struct {
	query                models.AthleteQuery
	genderM              float64
	countryEncoded       float64
	eventLocationEncoded float64
	hostCountry          string
	eventCountryEncoded  float64
	ageBand              int
	ageGroup             string
	location             models.LocationAttributes
	sportTypes           models.SportTypeRow
	isLocal              float64
	distanceMeters       float64
}

// CheckSchema reports whether every feature the schema declares can be
// produced from the loaded tables
func (a *Assembler) CheckSchema(schema Schema) error {
	_, err := buildPlan(schema.Name(), schema.FeatureNames(), a.tables)
	return err
}

// Assemble builds the feature row a model expects for a query, in the model's
// declared order. Only the joins the schema needs are run.
func (a *Assembler) Assemble(ctx context.Context, query models.AthleteQuery, schema Schema) (models.FeatureRow, error) {
	names := schema.FeatureNames()
	p, err := buildPlan(schema.Name(), names, a.tables)
	if err != nil {
		return models.FeatureRow{}, err
	}

	s := &state{query: query}

	gender, err := models.ParseGender(string(query.Gender))
	if err != nil {
		return models.FeatureRow{}, err
	}
	if gender == models.GenderMale {
		s.genderM = 1
	}

	if p.has(stageCountry) {
		if s.countryEncoded, err = a.tables.CountryEncoded(query.Country); err != nil {
			return models.FeatureRow{}, err
		}
	}

	if p.has(stageEventLocation) {
		if s.eventLocationEncoded, err = a.tables.EventLocationEncoded(query.EventLocation); err != nil {
			return models.FeatureRow{}, err
		}
	}

	// The attributes row is unique per location, so the host country and the
	// environmental columns come from the same join.
	if p.has(stageHost) {
		if s.location, err = a.tables.Location(query.EventLocation); err != nil {
			return models.FeatureRow{}, err
		}
		s.hostCountry = s.location.HostCountry
	}

	if p.has(stageEventCountry) {
		if s.eventCountryEncoded, err = a.tables.EventCountryEncoded(s.hostCountry); err != nil {
			return models.FeatureRow{}, err
		}
	}

	if s.ageBand, s.ageGroup, err = Band(query.Age, query.IsElite); err != nil {
		return models.FeatureRow{}, err
	}

	if p.has(stageSportTypes) {
		if s.sportTypes, err = a.tables.SportTypesFor(s.eventLocationEncoded); err != nil {
			return models.FeatureRow{}, err
		}
	}

	if p.has(stageHost) {
		s.isLocal = IsLocal(query.Country, s.hostCountry)
	}

	if p.has(stageDistance) {
		if s.distanceMeters, err = a.resolveDistance(ctx, query.Country, s.location); err != nil {
			return models.FeatureRow{}, err
		}
	}

	row := models.FeatureRow{
		Names:  append([]string(nil), names...),
		Values: make([]float64, len(names)),
	}
	for i, column := range p.columns {
		v := column(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.FeatureRow{}, &models.MissingFeatureError{
				Model:   schema.Name(),
				Feature: names[i],
				Err:     fmt.Errorf("value is %v", v),
			}
		}
		row.Values[i] = v
	}

	a.logger.WithFields(logrus.Fields{
		"model":     schema.Name(),
		"features":  row.Len(),
		"age_group": s.ageGroup,
	}).Debug("Feature row assembled")

	return row, nil
}

func (a *Assembler) resolveDistance(ctx context.Context, country string, location models.LocationAttributes) (float64, error) {
	var err error
	if a.distance == nil {
		err = fmt.Errorf("%w: no distance resolver configured", models.ErrGeocodeUnavailable)
	} else {
		var meters float64
		meters, err = a.distance.DistanceFromCountry(ctx, country, location.Coordinates())
		if err == nil {
			return meters, nil
		}
	}

	if a.policy.OnUnavailable == DistanceDefault && errors.Is(err, models.ErrGeocodeUnavailable) {
		a.logger.WithFields(logrus.Fields{
			"country":        country,
			"default_meters": a.policy.DefaultMeters,
		}).WithError(err).Warn("Distance unavailable, using default")
		return a.policy.DefaultMeters, nil
	}
	return 0, err
}

// IsLocal returns 1 when the athlete competes in their home country. The
// comparison is exact and case-sensitive.
func IsLocal(athleteCountry, hostCountry string) float64 {
	if athleteCountry == hostCountry {
		return 1
	}
	return 0
}

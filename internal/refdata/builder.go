package refdata

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// tableBuilder accumulates raw rows and enforces the uniqueness rules of each
// table before the set is handed out
type tableBuilder struct {
	tables    *models.ReferenceTables
	sportRows map[float64][]models.SportTypeRow
	columns   []string
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{
		tables:    models.NewReferenceTables(),
		sportRows: make(map[float64][]models.SportTypeRow),
	}
}

func (b *tableBuilder) frequencyTable(name string) map[string]float64 {
	switch name {
	case models.TableCountryFrequency:
		return b.tables.CountryFrequency
	case models.TableEventLocationFrequency:
		return b.tables.EventLocationFrequency
	default:
		return b.tables.EventCountryFrequency
	}
}

// addFrequency records one encoding. Repeated keys are accepted only when they
// carry the same value.
func (b *tableBuilder) addFrequency(table, key string, value float64) error {
	if key == "" {
		return models.NewDataLoadError(table, "empty key", nil)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return models.NewDataLoadError(table, fmt.Sprintf("non-numeric encoding for %q", key), nil)
	}
	m := b.frequencyTable(table)
	if existing, ok := m[key]; ok && existing != value {
		return models.NewDataLoadError(table, fmt.Sprintf("conflicting encodings for %q: %v and %v", key, existing, value), nil)
	}
	m[key] = value
	return nil
}

// addLocation records one attributes row. Exact duplicates are dropped; two
// different rows for the same location are rejected.
func (b *tableBuilder) addLocation(row models.LocationAttributes) error {
	if row.EventLocation == "" {
		return models.NewDataLoadError(models.TableLocationAttributes, "empty event location", nil)
	}
	if row.HostCountry == "" {
		return models.NewDataLoadError(models.TableLocationAttributes, fmt.Sprintf("no host country for %q", row.EventLocation), nil)
	}
	for _, v := range []float64{row.Latitude, row.Longitude} {
		if math.IsNaN(v) {
			return models.NewDataLoadError(models.TableLocationAttributes, fmt.Sprintf("missing coordinates for %q", row.EventLocation), nil)
		}
	}
	if existing, ok := b.tables.LocationAttributes[row.EventLocation]; ok {
		if sameLocation(existing, row) {
			return nil
		}
		if existing.HostCountry != row.HostCountry {
			return models.NewDataLoadError(models.TableLocationAttributes,
				fmt.Sprintf("event location %q has host countries %q and %q", row.EventLocation, existing.HostCountry, row.HostCountry), nil)
		}
		return models.NewDataLoadError(models.TableLocationAttributes,
			fmt.Sprintf("conflicting attribute rows for %q", row.EventLocation), nil)
	}
	b.tables.LocationAttributes[row.EventLocation] = row
	return nil
}

// sameLocation compares rows treating NaN as equal to NaN so that exact
// duplicates with empty environmental cells still collapse
func sameLocation(a, b models.LocationAttributes) bool {
	if a.EventLocation != b.EventLocation || a.HostCountry != b.HostCountry ||
		a.SwimType != b.SwimType || a.BikeType != b.BikeType || a.RunType != b.RunType {
		return false
	}
	pairs := [][2]float64{
		{a.Latitude, b.Latitude},
		{a.Longitude, b.Longitude},
		{a.AltitudeMeters, b.AltitudeMeters},
		{a.AvgAirTempC, b.AvgAirTempC},
		{a.AvgWaterTempC, b.AvgWaterTempC},
	}
	for _, p := range pairs {
		if p[0] != p[1] && !(math.IsNaN(p[0]) && math.IsNaN(p[1])) {
			return false
		}
	}
	return true
}

func (b *tableBuilder) setSportColumns(columns []string) {
	b.columns = append([]string(nil), columns...)
}

// addSportTypes records one catalog row. Rows sharing an encoded key are kept
// so the join can report the ambiguity.
func (b *tableBuilder) addSportTypes(encoded float64, values map[string]float64) error {
	if math.IsNaN(encoded) {
		return models.NewDataLoadError(models.TableSportTypesPerLocation, "missing EventLocation_Encoded", nil)
	}
	for name, v := range values {
		if math.IsNaN(v) {
			return models.NewDataLoadError(models.TableSportTypesPerLocation,
				fmt.Sprintf("missing value for column %q at encoding %v", name, encoded), nil)
		}
	}
	row := models.SportTypeRow{EventLocationEncoded: encoded, Values: values}
	for _, existing := range b.sportRows[encoded] {
		if sameValues(existing.Values, values) {
			return nil
		}
	}
	b.sportRows[encoded] = append(b.sportRows[encoded], row)
	return nil
}

func sameValues(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func (b *tableBuilder) addResult(r models.HistoricalResult) {
	b.tables.HistoricalResults = append(b.tables.HistoricalResults, r)
}

// build checks that every required table holds data and returns the set
func (b *tableBuilder) build() (*models.ReferenceTables, error) {
	required := map[string]int{
		models.TableCountryFrequency:       len(b.tables.CountryFrequency),
		models.TableEventLocationFrequency: len(b.tables.EventLocationFrequency),
		models.TableEventCountryFrequency:  len(b.tables.EventCountryFrequency),
		models.TableLocationAttributes:     len(b.tables.LocationAttributes),
		models.TableSportTypesPerLocation:  len(b.sportRows),
	}
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if required[name] == 0 {
			return nil, models.NewDataLoadError(name, "table is empty", nil)
		}
	}

	b.tables.SportTypes = b.sportRows
	b.tables.SportTypeColumns = b.columns
	return b.tables, nil
}

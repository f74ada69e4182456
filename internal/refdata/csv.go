package refdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// Column names used by the exported CSV tables
const (
	colCountry              = "Country"
	colCountryEncoded       = "Country_Encoded"
	colEventLocation        = "EventLocation"
	colEventLocationEncoded = "EventLocation_Encoded"
	colEventCountry         = "EventCountry"
	colEventCountryEncoded  = "EventCountry_Encoded"
	colSwimType             = "Swim Type"
	colBikeType             = "Bike Type"
	colRunType              = "Run Type"
	colLatitude             = "Latitude"
	colLongitude            = "Longitude"
	colAltitude             = "Altitude (m)"
	colAirTemp              = "Air Temperature (°C)"
	colWaterTemp            = "Water Temperature (°C)"
	colSwimTime             = "SwimTime"
	colBikeTime             = "BikeTime"
	colRunTime              = "RunTime"
	colUnnamedIndex         = "Unnamed: 0"
)

// DefaultFiles maps each table to its default file name
var DefaultFiles = map[string]string{
	models.TableCountryFrequency:       "df_country_freqs.csv",
	models.TableEventLocationFrequency: "df_event_location_freq.csv",
	models.TableEventCountryFrequency:  "df_event_country_freq.csv",
	models.TableLocationAttributes:     "location_attributes.csv",
	models.TableSportTypesPerLocation:  "df_types_per_location.csv",
	models.TableHistoricalResults:      "historical_results.csv",
}

// CSVLoader reads reference tables from CSV exports in a directory
type CSVLoader struct {
	dir   string
	files map[string]string
}

// NewCSVLoader creates a new CSV loader. files overrides DefaultFiles per table.
func NewCSVLoader(dir string, files map[string]string) *CSVLoader {
	merged := make(map[string]string, len(DefaultFiles))
	for table, file := range DefaultFiles {
		merged[table] = file
	}
	for table, file := range files {
		merged[table] = file
	}
	return &CSVLoader{dir: dir, files: merged}
}

// Name returns the name of the source
func (l *CSVLoader) Name() string {
	return "csv"
}

// Load reads and validates every table
func (l *CSVLoader) Load(ctx context.Context) (*models.ReferenceTables, error) {
	b := newTableBuilder()

	steps := []struct {
		table string
		load  func(dataframe.DataFrame, *tableBuilder) error
		types map[string]series.Type
	}{
		{models.TableCountryFrequency, frequencyLoader(models.TableCountryFrequency, colCountry, colCountryEncoded),
			map[string]series.Type{colCountry: series.String, colCountryEncoded: series.Float}},
		{models.TableEventLocationFrequency, frequencyLoader(models.TableEventLocationFrequency, colEventLocation, colEventLocationEncoded),
			map[string]series.Type{colEventLocation: series.String, colEventLocationEncoded: series.Float}},
		{models.TableEventCountryFrequency, frequencyLoader(models.TableEventCountryFrequency, colEventCountry, colEventCountryEncoded),
			map[string]series.Type{colEventCountry: series.String, colEventCountryEncoded: series.Float}},
		{models.TableLocationAttributes, loadLocations, map[string]series.Type{
			colEventLocation: series.String, colEventCountry: series.String,
			colSwimType: series.String, colBikeType: series.String, colRunType: series.String,
			colLatitude: series.Float, colLongitude: series.Float, colAltitude: series.Float,
			colAirTemp: series.Float, colWaterTemp: series.Float,
		}},
		{models.TableSportTypesPerLocation, loadSportTypes, map[string]series.Type{colEventLocationEncoded: series.Float}},
		{models.TableHistoricalResults, loadResults, map[string]series.Type{
			colEventLocation: series.String, colSwimTime: series.Float, colBikeTime: series.Float, colRunTime: series.Float,
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		df, err := l.read(step.table, step.types)
		if err != nil {
			return nil, err
		}
		if err := step.load(df, b); err != nil {
			return nil, err
		}
	}

	return b.build()
}

func (l *CSVLoader) read(table string, types map[string]series.Type) (dataframe.DataFrame, error) {
	path := l.files[table]
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, models.NewDataLoadError(table, "failed to open "+path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(types))
	if df.Err != nil {
		return dataframe.DataFrame{}, models.NewDataLoadError(table, "malformed csv", df.Err)
	}
	for column := range types {
		if !hasColumn(df, column) {
			return dataframe.DataFrame{}, models.NewDataLoadError(table, fmt.Sprintf("missing column %q", column), nil)
		}
	}
	return df, nil
}

func frequencyLoader(table, keyColumn, valueColumn string) func(dataframe.DataFrame, *tableBuilder) error {
	return func(df dataframe.DataFrame, b *tableBuilder) error {
		keys := df.Col(keyColumn).Records()
		values := df.Col(valueColumn).Float()
		for i := range keys {
			if err := b.addFrequency(table, keys[i], values[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func loadLocations(df dataframe.DataFrame, b *tableBuilder) error {
	locations := df.Col(colEventLocation).Records()
	countries := df.Col(colEventCountry).Records()
	swim := df.Col(colSwimType).Records()
	bike := df.Col(colBikeType).Records()
	run := df.Col(colRunType).Records()
	lat := df.Col(colLatitude).Float()
	lon := df.Col(colLongitude).Float()
	alt := df.Col(colAltitude).Float()
	air := df.Col(colAirTemp).Float()
	water := df.Col(colWaterTemp).Float()

	for i := range locations {
		err := b.addLocation(models.LocationAttributes{
			EventLocation:  locations[i],
			HostCountry:    countries[i],
			SwimType:       swim[i],
			BikeType:       bike[i],
			RunType:        run[i],
			Latitude:       lat[i],
			Longitude:      lon[i],
			AltitudeMeters: alt[i],
			AvgAirTempC:    air[i],
			AvgWaterTempC:  water[i],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loadSportTypes treats every column other than the encoded key as a numeric
// sport-type feature.
func loadSportTypes(df dataframe.DataFrame, b *tableBuilder) error {
	var columns []string
	for _, name := range df.Names() {
		if name == colEventLocationEncoded || name == colUnnamedIndex || name == "" {
			continue
		}
		columns = append(columns, name)
	}
	b.setSportColumns(columns)

	encoded := df.Col(colEventLocationEncoded).Float()
	values := make(map[string][]float64, len(columns))
	for _, name := range columns {
		values[name] = sportTypeValues(df.Col(name))
	}

	for i := range encoded {
		row := make(map[string]float64, len(columns))
		for _, name := range columns {
			row[name] = values[name][i]
		}
		if err := b.addSportTypes(encoded[i], row); err != nil {
			return err
		}
	}
	return nil
}

// sportTypeValues reads a one-hot column as 0 and 1. Exported True/False
// cells are detected as strings and are parsed as booleans.
func sportTypeValues(col series.Series) []float64 {
	if col.Type() == series.String {
		col = series.New(col.Records(), series.Bool, col.Name)
	}
	return col.Float()
}

func loadResults(df dataframe.DataFrame, b *tableBuilder) error {
	locations := df.Col(colEventLocation).Records()
	swim := df.Col(colSwimTime).Float()
	bike := df.Col(colBikeTime).Float()
	run := df.Col(colRunTime).Float()

	for i := range locations {
		b.addResult(models.HistoricalResult{
			EventLocation: locations[i],
			SwimTime:      swim[i],
			BikeTime:      bike[i],
			RunTime:       run[i],
		})
	}
	return nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

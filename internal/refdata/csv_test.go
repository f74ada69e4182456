package refdata

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/models"
)

func TestCSVLoaderLoad(t *testing.T) {
	tables, err := NewCSVLoader("testdata", nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.12, tables.CountryFrequency["Spain"])
	assert.Equal(t, 0.2, tables.CountryFrequency["United Kingdom"])
	assert.Equal(t, 0.08, tables.EventLocationFrequency["Barcelona"])
	assert.Equal(t, 0.07, tables.EventCountryFrequency["France"])

	// Exact duplicate rows collapse into one
	require.Len(t, tables.LocationAttributes, 2)
	barcelona := tables.LocationAttributes["Barcelona"]
	assert.Equal(t, "Spain", barcelona.HostCountry)
	assert.Equal(t, "Sea", barcelona.SwimType)
	assert.Equal(t, 12.0, barcelona.AltitudeMeters)
	assert.InDelta(t, 41.3851, barcelona.Latitude, 1e-9)
	assert.True(t, math.IsNaN(tables.LocationAttributes["Nice"].AvgWaterTempC))

	assert.Equal(t, []string{"Swim Type_Sea", "Bike Type_Hilly"}, tables.SportTypeColumns)
	row, err := tables.SportTypesFor(0.05)
	require.NoError(t, err)
	assert.Equal(t, 1.0, row.Values["Swim Type_Sea"])
	assert.Equal(t, 1.0, row.Values["Bike Type_Hilly"])
	row, err = tables.SportTypesFor(0.08)
	require.NoError(t, err)
	assert.Equal(t, 0.0, row.Values["Bike Type_Hilly"])
	assert.NotContains(t, row.Values, "Unnamed: 0")

	assert.Len(t, tables.HistoricalResults, 4)
	assert.Len(t, tables.ResultsAt("Barcelona"), 3)
}

func TestCSVLoaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		content string
		reason  string
	}{
		{
			name:    "conflicting host countries",
			table:   models.TableLocationAttributes,
			content: "EventLocation,EventCountry,Swim Type,Bike Type,Run Type,Latitude,Longitude,Altitude (m),Air Temperature (°C),Water Temperature (°C)\nNice,France,Sea,Hilly,Flat,43.7,7.26,10,25,22\nNice,Monaco,Sea,Hilly,Flat,43.7,7.26,10,25,22\n",
			reason:  "host countries",
		},
		{
			name:    "conflicting attributes",
			table:   models.TableLocationAttributes,
			content: "EventLocation,EventCountry,Swim Type,Bike Type,Run Type,Latitude,Longitude,Altitude (m),Air Temperature (°C),Water Temperature (°C)\nNice,France,Sea,Hilly,Flat,43.7,7.26,10,25,22\nNice,France,Lake,Hilly,Flat,43.7,7.26,10,25,22\n",
			reason:  "conflicting attribute rows",
		},
		{
			name:    "conflicting encodings",
			table:   models.TableCountryFrequency,
			content: "Country,Country_Encoded\nSpain,0.12\nSpain,0.13\n",
			reason:  "conflicting encodings",
		},
		{
			name:    "missing column",
			table:   models.TableEventCountryFrequency,
			content: "EventCountry,Frequency\nSpain,0.12\n",
			reason:  "missing column",
		},
		{
			name:    "non-numeric encoding",
			table:   models.TableEventLocationFrequency,
			content: "EventLocation,EventLocation_Encoded\nBarcelona,high\n",
			reason:  "non-numeric",
		},
		{
			name:    "empty table",
			table:   models.TableCountryFrequency,
			content: "Country,Country_Encoded\n",
			reason:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "override.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			loader := NewCSVLoader("testdata", map[string]string{tt.table: path})
			_, err := loader.Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrDataLoad))

			var loadErr *models.DataLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.table, loadErr.Table)
			assert.Contains(t, loadErr.Reason, tt.reason)
		})
	}
}

func TestCSVLoaderMissingFile(t *testing.T) {
	loader := NewCSVLoader(t.TempDir(), nil)
	_, err := loader.Load(context.Background())
	require.Error(t, err)

	var loadErr *models.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, models.TableCountryFrequency, loadErr.Table)
}

func TestCSVLoaderAmbiguousSportTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "types.csv")
	content := "EventLocation_Encoded,Swim Type_Sea\n0.05,True\n0.05,False\n0.08,True\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := NewCSVLoader("testdata", map[string]string{models.TableSportTypesPerLocation: path}).Load(context.Background())
	require.NoError(t, err)

	_, err = tables.SportTypesFor(0.05)
	assert.True(t, errors.Is(err, models.ErrUnjoinableRow))

	var joinErr *models.JoinError
	require.True(t, errors.As(err, &joinErr))
	assert.Equal(t, 2, joinErr.Matches)
}

func TestCSVLoaderBooleanSportTypes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[float64]map[string]float64
		reason  string
	}{
		{
			name:    "capitalised booleans",
			content: "Unnamed: 0,EventLocation_Encoded,Swim Type_Sea,Bike Type_Hilly\n0,0.08,True,False\n1,0.05,False,True\n",
			want: map[float64]map[string]float64{
				0.08: {"Swim Type_Sea": 1, "Bike Type_Hilly": 0},
				0.05: {"Swim Type_Sea": 0, "Bike Type_Hilly": 1},
			},
		},
		{
			name:    "mixed case",
			content: "EventLocation_Encoded,Swim Type_Sea,Bike Type_Hilly\n0.08,TRUE,false\n0.05,false,True\n",
			want: map[float64]map[string]float64{
				0.08: {"Swim Type_Sea": 1, "Bike Type_Hilly": 0},
				0.05: {"Swim Type_Sea": 0, "Bike Type_Hilly": 1},
			},
		},
		{
			name:    "numeric one-hot",
			content: "EventLocation_Encoded,Swim Type_Sea,Bike Type_Hilly\n0.08,1,0\n0.05,0,1\n",
			want: map[float64]map[string]float64{
				0.08: {"Swim Type_Sea": 1, "Bike Type_Hilly": 0},
				0.05: {"Swim Type_Sea": 0, "Bike Type_Hilly": 1},
			},
		},
		{
			name:    "unparseable cell",
			content: "EventLocation_Encoded,Swim Type_Sea,Bike Type_Hilly\n0.08,True,maybe\n0.05,False,True\n",
			reason:  "Bike Type_Hilly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "types.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			tables, err := NewCSVLoader("testdata", map[string]string{models.TableSportTypesPerLocation: path}).Load(context.Background())
			if tt.reason != "" {
				var loadErr *models.DataLoadError
				require.True(t, errors.As(err, &loadErr))
				assert.Equal(t, models.TableSportTypesPerLocation, loadErr.Table)
				assert.Contains(t, loadErr.Reason, tt.reason)
				return
			}
			require.NoError(t, err)

			for encoded, want := range tt.want {
				row, err := tables.SportTypesFor(encoded)
				require.NoError(t, err)
				assert.Equal(t, want, row.Values)
			}
		})
	}
}

package geo

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// StaticGeocoder serves country centroids from a fixed table
type StaticGeocoder struct {
	centroids map[string]models.Coordinates
}

// NewStaticGeocoder creates a geocoder backed by an in-memory table
func NewStaticGeocoder(centroids map[string]models.Coordinates) *StaticGeocoder {
	table := make(map[string]models.Coordinates, len(centroids))
	for k, v := range centroids {
		table[k] = v
	}
	return &StaticGeocoder{centroids: table}
}

// LoadStaticGeocoder reads a CSV with country, lat and lon columns
func LoadStaticGeocoder(path string) (*StaticGeocoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open centroid file: %w", err)
	}
	defer f.Close()
	return ReadStaticGeocoder(f)
}

// ReadStaticGeocoder parses a centroid table from r
func ReadStaticGeocoder(r io.Reader) (*StaticGeocoder, error) {
	df := dataframe.ReadCSV(r, dataframe.WithTypes(map[string]series.Type{
		"country": series.String,
		"lat":     series.Float,
		"lon":     series.Float,
	}))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse centroid file: %w", df.Err)
	}
	for _, col := range []string{"country", "lat", "lon"} {
		if !hasColumn(df, col) {
			return nil, fmt.Errorf("centroid file is missing column %q", col)
		}
	}

	countries := df.Col("country").Records()
	lats := df.Col("lat").Float()
	lons := df.Col("lon").Float()

	centroids := make(map[string]models.Coordinates, len(countries))
	for i, country := range countries {
		if math.IsNaN(lats[i]) || math.IsNaN(lons[i]) {
			return nil, fmt.Errorf("centroid for %q has no coordinates", country)
		}
		centroids[country] = models.Coordinates{Lat: lats[i], Lon: lons[i]}
	}
	return &StaticGeocoder{centroids: centroids}, nil
}

// Name returns the provider name
func (g *StaticGeocoder) Name() string {
	return "static"
}

// Geocode looks up a country by exact name
func (g *StaticGeocoder) Geocode(_ context.Context, place string) (models.Coordinates, error) {
	c, ok := g.centroids[place]
	if !ok {
		return models.Coordinates{}, ErrPlaceNotFound
	}
	return c, nil
}

// Len returns the number of countries in the table
func (g *StaticGeocoder) Len() int {
	return len(g.centroids)
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Package geo resolves country centroids and measures geodesic distances to events.
package geo

import (
	"github.com/tidwall/geodesic"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// DistanceMeters returns the geodesic distance on the WGS84 ellipsoid between
// two points
func DistanceMeters(from, to models.Coordinates) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(from.Lat, from.Lon, to.Lat, to.Lon, &s12, nil, nil)
	return s12
}

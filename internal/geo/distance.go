// Package geo computes walk distances on the sphere.
package geo

import (
	"github.com/golang/geo/s2"

	"github.com/walktrack/backend/internal/models"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two points in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// PathDistance sums the great-circle distance between consecutive samples. Samples must
// already be ordered by sequence number; sentinel samples are ignored.
func PathDistance(locations []models.WalkLocation) float64 {
	var (
		total float64
		prev  *models.WalkLocation
	)
	for i := range locations {
		loc := &locations[i]
		if loc.IsSentinel() {
			continue
		}
		if prev != nil {
			total += Distance(prev.Latitude, prev.Longitude, loc.Latitude, loc.Longitude)
		}
		prev = loc
	}
	return total
}

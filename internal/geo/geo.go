// Package geo holds the spatial primitives the radar depends on. The
// numeric behavior of DistanceMeters is a hard contract: the radius
// constant and the rounding decide which broadcasters appear in range.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	earthRadiusMeters = 6371000.0

	// metersPerDegreeLat is the planar approximation used for cheap
	// displacement checks; longitude is corrected by cos(lat).
	metersPerDegreeLat = 111320.0

	// proximityKeyPrecision matches the geohash length the original
	// store indexed sessions under.
	proximityKeyPrecision = 10
)

// DistanceMeters returns the great-circle distance between two points in
// whole meters (haversine, Earth radius 6371 km, rounded to nearest).
// Symmetric, non-negative, zero iff the points are identical.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) int {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLng := toRadians(lng2 - lng1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return int(math.Round(earthRadiusMeters * c))
}

// DisplacementMeters approximates how far two nearby points are apart
// using a local planar projection. Only meant for jitter thresholds of a
// few meters, where the haversine is overkill.
func DisplacementMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * metersPerDegreeLat
	dLng := (lng2 - lng1) * metersPerDegreeLat * math.Cos(toRadians(lat1))
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// ProximityKey returns the derived index key for a coordinate pair. It
// must be recomputed whenever a record's coordinates change.
func ProximityKey(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, proximityKeyPrecision)
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

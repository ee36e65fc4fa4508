package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersZeroForIdenticalPoints(t *testing.T) {
	assert.Equal(t, 0, DistanceMeters(0, 0, 0, 0))
	assert.Equal(t, 0, DistanceMeters(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestDistanceMetersSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{0, 0, 0, 0.001},
		{0, 0, 1, 1},
		{48.8566, 2.3522, 51.5074, -0.1278},
		{-33.8688, 151.2093, 35.6762, 139.6503},
	}
	for _, p := range pairs {
		assert.Equal(t,
			DistanceMeters(p[0], p[1], p[2], p[3]),
			DistanceMeters(p[2], p[3], p[0], p[1]),
		)
	}
}

func TestDistanceMetersKnownValues(t *testing.T) {
	// One thousandth of a degree of longitude at the equator.
	assert.Equal(t, 111, DistanceMeters(0, 0, 0, 0.001))

	// One degree diagonal from the origin, about 157 km.
	d := DistanceMeters(0, 0, 1, 1)
	assert.InDelta(t, 157250, d, 50)

	// Paris to London, about 344 km.
	d = DistanceMeters(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344000, d, 1500)
}

func TestDisplacementMetersApproximatesShortDistances(t *testing.T) {
	// 1e-4 degrees of latitude is about 11 meters.
	assert.InDelta(t, 11.13, DisplacementMeters(40, -74, 40.0001, -74), 0.05)

	// Longitude shrinks with latitude.
	atEquator := DisplacementMeters(0, 0, 0, 0.0001)
	at60 := DisplacementMeters(60, 0, 60, 0.0001)
	assert.InDelta(t, atEquator/2, at60, 0.05)

	assert.Zero(t, DisplacementMeters(10, 10, 10, 10))
}

func TestDisplacementTracksHaversineAtSmallScale(t *testing.T) {
	planar := DisplacementMeters(40, -74, 40.00005, -74.00005)
	great := DistanceMeters(40, -74, 40.00005, -74.00005)
	assert.InDelta(t, float64(great), planar, 1)
}

func TestProximityKey(t *testing.T) {
	k := ProximityKey(48.8566, 2.3522)
	assert.Len(t, k, 10)

	assert.Equal(t, k, ProximityKey(48.8566, 2.3522))
	assert.NotEqual(t, k, ProximityKey(-33.8688, 151.2093))
}

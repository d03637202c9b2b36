package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMilesIdenticalPoints(t *testing.T) {
	points := [][2]float64{
		{26.1224386, -80.1373174},
		{0.0001, 0.0001},
		{-89.9999, 179.9999},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceMiles(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceMilesSymmetry(t *testing.T) {
	// Fort Lauderdale -> Miami
	d1 := DistanceMiles(26.1224386, -80.1373174, 25.7616798, -80.1917902)
	d2 := DistanceMiles(25.7616798, -80.1917902, 26.1224386, -80.1373174)
	assert.Equal(t, d1, d2)
	assert.Greater(t, d1, 0.0)
}

func TestDistanceMilesKnownDistance(t *testing.T) {
	// Fort Lauderdale to Miami is roughly 25 miles.
	d := DistanceMiles(26.1224386, -80.1373174, 25.7616798, -80.1917902)
	assert.InDelta(t, 25.0, d, 2.0)
}

func TestDistanceMilesNearIdenticalDoesNotNaN(t *testing.T) {
	d := DistanceMiles(26.1224386, -80.1373174, 26.1224386, -80.13731740000001)
	assert.False(t, math.IsNaN(d))
	assert.GreaterOrEqual(t, d, 0.0)
}

func TestDistanceMilesNaNPropagates(t *testing.T) {
	d := DistanceMiles(math.NaN(), -80.0, 26.0, -80.1)
	assert.True(t, math.IsNaN(d))
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"fort lauderdale", 26.1224386, -80.1373174, true},
		{"null island", 0, 0, false},
		{"lat out of range", 91, 0, false},
		{"lon out of range", 45, 181, false},
		{"extremes", -90, 180, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidCoordinates(tc.lat, tc.lon))
		})
	}
}

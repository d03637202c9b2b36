package geo

import (
	"math"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle math.
const EarthRadiusMiles = 3958.8

// DistanceMiles computes the Haversine great-circle distance in miles
// between two (lat, lon) pairs.
//
// Bit-identical inputs short-circuit to exactly 0: floating point rounding
// can push the intermediate term fractionally outside [0, 1] for
// near-identical points, and math.Asin would return NaN. The a term is
// clamped to [0, 1] for the same reason. NaN inputs propagate as NaN,
// which callers treat as "unknown distance".
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := rlat2 - rlat1
	dlon := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dlat / 2)
	sinLon := math.Sin(dlon / 2)
	a := sinLat*sinLat + math.Cos(rlat1)*math.Cos(rlat2)*sinLon*sinLon
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(a))
}

// ValidCoordinates checks latitude and longitude ranges. The (0, 0) point
// is rejected because upstream data uses it for missing coordinates.
func ValidCoordinates(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

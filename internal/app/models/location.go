package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swipedeck/swipedeck/internal/pkg/geo"
)

// Coordinate is the canonical internal representation of a point. The wire
// formats put longitude first ("<lon>,<lat>" and [lon,lat]); the swap to
// (lat, lon) happens here and nowhere else.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DefaultLocation is the fallback when a client supplies no location
// (Fort Lauderdale).
var DefaultLocation = Coordinate{Latitude: 26.1224386, Longitude: -80.1373174}

// ParseLocation parses the wire encoding of a location. Accepted forms are
// "<lon>,<lat>" and the bracketed "[<lon>,<lat>]" variant. Longitude comes
// first on the wire.
func ParseLocation(raw string) (Coordinate, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid location %q: expected \"<lon>,<lat>\"", raw)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in location %q: %w", raw, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in location %q: %w", raw, err)
	}

	// Out-of-range pairs and the (0, 0) missing-coordinate sentinel are
	// both rejected.
	if !geo.ValidCoordinates(lat, lon) {
		return Coordinate{}, fmt.Errorf("location %q out of range", raw)
	}

	return Coordinate{Latitude: lat, Longitude: lon}, nil
}

// ParseLocationOrDefault falls back to DefaultLocation on empty or
// malformed input so feed endpoints always have a usable center point.
func ParseLocationOrDefault(raw string) Coordinate {
	if raw == "" {
		return DefaultLocation
	}
	coord, err := ParseLocation(raw)
	if err != nil {
		return DefaultLocation
	}
	return coord
}

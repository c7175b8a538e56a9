// Package geo holds the geographic coordinate value shared by the raster
// sampler, the spherical projector and the grid driver.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Coordinate ranges in degrees.
const (
	MinLon = -180.0
	MaxLon = 180.0
	MinLat = -90.0
	MaxLat = 90.0
)

// ErrInvalidCoordinate is returned when a coordinate carries NaN or infinite
// components.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a longitude/latitude pair in degrees.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Validate rejects non-finite components. Finite values outside the
// documented ranges are accepted; callers that index into rasters clamp.
func (c Coordinate) Validate() error {
	if !finite(c.Lon) || !finite(c.Lat) {
		return fmt.Errorf("%w: lon=%v lat=%v", ErrInvalidCoordinate, c.Lon, c.Lat)
	}
	return nil
}

// InRange reports whether the coordinate lies within the documented ranges.
func (c Coordinate) InRange() bool {
	return c.Lon >= MinLon && c.Lon <= MaxLon && c.Lat >= MinLat && c.Lat <= MaxLat
}

// Clamp returns the coordinate pulled into [-180,180] x [-90,90]. NaN
// components collapse to the range minimum.
func (c Coordinate) Clamp() Coordinate {
	return Coordinate{
		Lon: clamp(c.Lon, MinLon, MaxLon),
		Lat: clamp(c.Lat, MinLat, MaxLat),
	}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Lon, c.Lat)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

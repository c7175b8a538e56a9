package globe

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/dotted-globe/geo"
)

// DefaultStep is the angular spacing of the sampling grid in degrees.
const DefaultStep = 0.6

// ErrInvalidGrid is returned when a grid configuration cannot tile the
// globe.
var ErrInvalidGrid = errors.New("invalid sampling grid")

// GridConfig controls the sampling resolution.
type GridConfig struct {
	Step float64 // degrees between samples on both axes
}

// Validate ensures the step lies in (0, 180].
func (c GridConfig) Validate() error {
	if math.IsNaN(c.Step) || c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %v", ErrInvalidGrid, c.Step)
	}
	if c.Step > 180 {
		return fmt.Errorf("%w: step %v is too large to tile the globe", ErrInvalidGrid, c.Step)
	}
	return nil
}

// Latitudes returns -90, -90+step, ... up to and including 90 when the step
// divides the range. Values are computed from an index, not accumulated.
func (c GridConfig) Latitudes() []float64 {
	return axis(geo.MinLat, geo.MaxLat, c.Step)
}

// Longitudes returns -180, -180+step, ... up to and including 180 when the
// step divides the range.
func (c GridConfig) Longitudes() []float64 {
	return axis(geo.MinLon, geo.MaxLon, c.Step)
}

// Size reports the number of grid samples.
func (c GridConfig) Size() int {
	return len(c.Latitudes()) * len(c.Longitudes())
}

func axis(lo, hi, step float64) []float64 {
	n := int(math.Floor((hi-lo)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Min(lo+float64(i)*step, hi)
	}
	return out
}

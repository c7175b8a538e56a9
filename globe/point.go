package globe

import (
	"image/color"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/signalsfoundry/dotted-globe/geo"
)

// ProjectedPoint is one render-ready marker: where it sits on the sphere,
// which way it faces and how it is painted.
type ProjectedPoint struct {
	Coordinate  geo.Coordinate
	Position    r3.Vector
	Normal      r3.Vector
	Orientation quat.Number
	Color       color.RGBA
	Country     string
}

// ColorFloat returns the color as RGB fractions in [0,1].
func (p ProjectedPoint) ColorFloat() [3]float64 {
	return [3]float64{
		float64(p.Color.R) / 255,
		float64(p.Color.G) / 255,
		float64(p.Color.B) / 255,
	}
}

// PointJSON is the wire form of a ProjectedPoint. Orientation is x, y, z, w.
type PointJSON struct {
	Lon         float64    `json:"lon"`
	Lat         float64    `json:"lat"`
	Position    [3]float64 `json:"position"`
	Normal      [3]float64 `json:"normal"`
	Orientation [4]float64 `json:"orientation"`
	Color       [3]uint8   `json:"color"`
	Country     string     `json:"country,omitempty"`
}

// JSON converts the point to its wire form.
func (p ProjectedPoint) JSON() PointJSON {
	return PointJSON{
		Lon:         p.Coordinate.Lon,
		Lat:         p.Coordinate.Lat,
		Position:    [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Normal:      [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z},
		Orientation: [4]float64{p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag, p.Orientation.Real},
		Color:       [3]uint8{p.Color.R, p.Color.G, p.Color.B},
		Country:     p.Country,
	}
}

// PointsJSON converts a slice of points.
func PointsJSON(points []ProjectedPoint) []PointJSON {
	out := make([]PointJSON, len(points))
	for i, p := range points {
		out[i] = p.JSON()
	}
	return out
}

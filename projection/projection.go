// Package projection places geographic coordinates on a sphere centred at
// the origin, with +Y through the north pole.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"gonum.org/v1/gonum/num/quat"

	"github.com/signalsfoundry/dotted-globe/geo"
)

// ErrInvalidRadius is returned for non-positive or non-finite radii.
var ErrInvalidRadius = errors.New("invalid sphere radius")

// ReferenceAxis is the marker's local "up" before it is oriented onto the
// sphere.
var ReferenceAxis = r3.Vector{X: 0, Y: 0, Z: 1}

// Placement is where and how a marker sits on the sphere.
type Placement struct {
	Position    r3.Vector
	Normal      r3.Vector
	Orientation quat.Number
}

// Project maps c onto a sphere of the given radius. Longitude is not
// clamped, so the mapping is periodic in 360 degrees.
func Project(c geo.Coordinate, radius float64) (Placement, error) {
	if err := c.Validate(); err != nil {
		return Placement{}, err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return Placement{}, fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}

	pos := Position(c, radius)
	normal := pos.Normalize()
	return Placement{
		Position:    pos,
		Normal:      normal,
		Orientation: FromUnitVectors(ReferenceAxis, normal),
	}, nil
}

// Position is the unchecked spherical-to-Cartesian conversion.
// phi is the polar angle from the north pole, theta the azimuth.
func Position(c geo.Coordinate, radius float64) r3.Vector {
	phi := (s1.Angle(90-c.Lat) * s1.Degree).Radians()
	theta := (s1.Angle(c.Lon+180) * s1.Degree).Radians()
	sinPhi := math.Sin(phi)
	return r3.Vector{
		X: -(radius * sinPhi * math.Cos(theta)),
		Y: radius * math.Cos(phi),
		Z: radius * sinPhi * math.Sin(theta),
	}
}

// FromUnitVectors returns the shortest-arc rotation taking unit vector from
// onto unit vector to. Antiparallel inputs rotate half a turn about an axis
// perpendicular to from.
func FromUnitVectors(from, to r3.Vector) quat.Number {
	const eps = 1e-8

	r := from.Dot(to) + 1
	var q quat.Number
	if r < eps {
		r = 0
		if math.Abs(from.X) > math.Abs(from.Z) {
			q = quat.Number{Real: r, Imag: -from.Y, Jmag: from.X, Kmag: 0}
		} else {
			q = quat.Number{Real: r, Imag: 0, Jmag: -from.Z, Kmag: from.Y}
		}
	} else {
		axis := from.Cross(to)
		q = quat.Number{Real: r, Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}
	return quat.Scale(1/quat.Abs(q), q)
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	out := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

// RotateY rotates v about the +Y axis by angle radians, right-handed.
func RotateY(v r3.Vector, angle float64) r3.Vector {
	sin, cos := math.Sincos(angle)
	return r3.Vector{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

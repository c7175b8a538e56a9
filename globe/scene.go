package globe

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/num/quat"

	"github.com/signalsfoundry/dotted-globe/projection"
)

// DefaultRotationPerFrame is how far the globe spins about +Y each frame,
// in radians.
const DefaultRotationPerFrame = 0.005

// Scene is the rotating group handed to a renderer: the sampled land or
// country markers plus optional overlay markers, all spun about +Y.
// Points are stored in the group's local frame; Snapshot returns them in
// world space.
type Scene struct {
	mu       sync.RWMutex
	points   []ProjectedPoint
	overlay  []ProjectedPoint
	rotation float64
	perFrame float64
	frames   uint64
}

// NewScene returns a scene that advances by perFrame radians per frame.
func NewScene(points []ProjectedPoint, perFrame float64) *Scene {
	return &Scene{points: points, perFrame: perFrame}
}

// SetPoints replaces the sampled markers, e.g. after assets were reloaded.
func (s *Scene) SetPoints(points []ProjectedPoint) {
	s.mu.Lock()
	s.points = points
	s.mu.Unlock()
}

// SetOverlay replaces the overlay markers.
func (s *Scene) SetOverlay(points []ProjectedPoint) {
	s.mu.Lock()
	s.overlay = points
	s.mu.Unlock()
}

// Advance steps the animation one frame and returns the new rotation,
// wrapped into [0, 2π).
func (s *Scene) Advance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = math.Mod(s.rotation+s.perFrame, 2*math.Pi)
	if s.rotation < 0 {
		s.rotation += 2 * math.Pi
	}
	s.frames++
	return s.rotation
}

// Rotation returns the current rotation about +Y in radians.
func (s *Scene) Rotation() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

// Frames returns the number of frames advanced so far.
func (s *Scene) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Counts returns the number of sampled and overlay markers.
func (s *Scene) Counts() (points, overlay int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), len(s.overlay)
}

// Points returns the sampled markers in the group's local frame.
func (s *Scene) Points() []ProjectedPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProjectedPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Snapshot returns every marker, overlay last, rotated into world space.
func (s *Scene) Snapshot() []ProjectedPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	angle := s.rotation
	half := angle / 2
	spin := quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)}

	out := make([]ProjectedPoint, 0, len(s.points)+len(s.overlay))
	for _, set := range [][]ProjectedPoint{s.points, s.overlay} {
		for _, p := range set {
			p.Position = projection.RotateY(p.Position, angle)
			p.Normal = projection.RotateY(p.Normal, angle)
			p.Orientation = quat.Mul(spin, p.Orientation)
			out = append(out, p)
		}
	}
	return out
}

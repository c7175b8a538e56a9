// Package overlay produces extra markers drawn on top of the sampled globe.
// Satellites are propagated from two-line element sets with SGP4 and placed
// above the sphere at a height scaled from their altitude.
package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/dotted-globe/geo"
	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/projection"
)

// EarthRadiusKm is the mean Earth radius used to scale altitudes onto the
// display sphere.
const EarthRadiusKm = 6371.0

// SatelliteColor paints overlay markers.
var SatelliteColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}

// ErrInvalidTLE is returned for element sets that cannot be parsed.
var ErrInvalidTLE = errors.New("invalid two-line element set")

// TLE names a satellite and carries its two element lines.
type TLE struct {
	Name  string `yaml:"name"`
	Line1 string `yaml:"line1"`
	Line2 string `yaml:"line2"`
}

// Validate performs the structural checks SGP4 parsing relies on.
func (t TLE) Validate() error {
	l1, l2 := strings.TrimSpace(t.Line1), strings.TrimSpace(t.Line2)
	if len(l1) != 69 || !strings.HasPrefix(l1, "1 ") {
		return fmt.Errorf("%w: %q line 1 must be 69 characters starting with \"1 \"", ErrInvalidTLE, t.Name)
	}
	if len(l2) != 69 || !strings.HasPrefix(l2, "2 ") {
		return fmt.Errorf("%w: %q line 2 must be 69 characters starting with \"2 \"", ErrInvalidTLE, t.Name)
	}
	return nil
}

type tracked struct {
	name string
	sat  satellite.Satellite
}

// SubPoint is a satellite's geodetic position at an instant.
type SubPoint struct {
	Name       string
	Coordinate geo.Coordinate
	AltitudeKm float64
}

// Tracker propagates a fixed set of satellites.
type Tracker struct {
	sats   []tracked
	radius float64
}

// NewTracker parses every TLE. radius is the display sphere radius.
func NewTracker(tles []TLE, radius float64) (*Tracker, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: %v", projection.ErrInvalidRadius, radius)
	}
	t := &Tracker{radius: radius}
	for _, tle := range tles {
		if err := tle.Validate(); err != nil {
			return nil, err
		}
		sat := satellite.TLEToSat(strings.TrimSpace(tle.Line1), strings.TrimSpace(tle.Line2), satellite.GravityWGS72)
		t.sats = append(t.sats, tracked{name: tle.Name, sat: sat})
	}
	return t, nil
}

// Len reports the number of tracked satellites.
func (t *Tracker) Len() int { return len(t.sats) }

// SubPoints propagates every satellite to at. Satellites whose propagation
// yields non-finite output are skipped.
func (t *Tracker) SubPoints(at time.Time) []SubPoint {
	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))

	out := make([]SubPoint, 0, len(t.sats))
	for _, s := range t.sats {
		posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
		alt, _, lla := satellite.ECIToLLA(posECI, gmst)

		c := geo.Coordinate{
			Lon: math.Remainder(lla.Longitude*180/math.Pi, 360),
			Lat: lla.Latitude * 180 / math.Pi,
		}
		if c.Validate() != nil || math.IsNaN(alt) || math.IsInf(alt, 0) {
			continue
		}
		out = append(out, SubPoint{Name: s.name, Coordinate: c, AltitudeKm: alt})
	}
	return out
}

// Markers returns one oriented marker per satellite, lifted above the
// sphere in proportion to altitude.
func (t *Tracker) Markers(at time.Time) []globe.ProjectedPoint {
	subs := t.SubPoints(at)
	out := make([]globe.ProjectedPoint, 0, len(subs))
	for _, sp := range subs {
		r := t.radius * (1 + math.Max(sp.AltitudeKm, 0)/EarthRadiusKm)
		pl, err := projection.Project(sp.Coordinate, r)
		if err != nil {
			continue
		}
		out = append(out, globe.ProjectedPoint{
			Coordinate:  sp.Coordinate,
			Position:    pl.Position,
			Normal:      pl.Normal,
			Orientation: pl.Orientation,
			Color:       SatelliteColor,
			Country:     sp.Name,
		})
	}
	return out
}

package raster

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/signalsfoundry/dotted-globe/geo"
)

// DefaultLandThreshold is the brightness below which a pixel counts as land.
const DefaultLandThreshold = 200.0

// LandColor is the uniform marker color used in land mode.
var LandColor = color.RGBA{R: 0, G: 128, B: 0, A: 255}

// Mode selects the classification scheme used by a deployment.
type Mode string

const (
	ModeLand    Mode = "land"
	ModeCountry Mode = "country"
)

// ParseMode accepts "land" or "country", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLand, "":
		return ModeLand, nil
	case ModeCountry:
		return ModeCountry, nil
	default:
		return "", fmt.Errorf("unknown classification mode %q", s)
	}
}

// Classification is the outcome of sampling one coordinate.
type Classification struct {
	Visible bool
	Country string
	Color   color.RGBA
}

// Classifier decides whether a coordinate yields a marker. Implementations
// are pure and safe for concurrent use.
type Classifier interface {
	Classify(img *Image, c geo.Coordinate) Classification
}

// PixelForCoordinate maps a coordinate onto the equirectangular raster.
// Coordinates are clamped into range and the resulting indices are clamped
// to the last row/column, so lon=180 and lat=-90 stay inside the image.
func PixelForCoordinate(img *Image, c geo.Coordinate) (x, y int) {
	c = c.Clamp()
	w, h := float64(img.width), float64(img.height)
	x = int(math.Floor((c.Lon + 180) * (w / 360)))
	y = int(math.Floor((90 - c.Lat) * (h / 180)))
	return clampIndex(x, img.width), clampIndex(y, img.height)
}

// PixelAt returns the color sampled for the coordinate.
func PixelAt(img *Image, c geo.Coordinate) color.RGBA {
	x, y := PixelForCoordinate(img, c)
	return img.At(x, y)
}

// Brightness is the mean of the R, G and B channels.
func Brightness(px color.RGBA) float64 {
	return (float64(px.R) + float64(px.G) + float64(px.B)) / 3
}

// LandClassifier treats dark pixels as land and paints them a single color.
type LandClassifier struct {
	Threshold float64
	Color     color.RGBA
}

// NewLandClassifier returns a classifier with the default threshold and
// color.
func NewLandClassifier() LandClassifier {
	return LandClassifier{Threshold: DefaultLandThreshold, Color: LandColor}
}

func (l LandClassifier) Classify(img *Image, c geo.Coordinate) Classification {
	if img == nil {
		return Classification{}
	}
	if Brightness(PixelAt(img, c)) < l.Threshold {
		return Classification{Visible: true, Color: l.Color}
	}
	return Classification{}
}

// CountryClassifier resolves the green channel through a ColorTable. The
// source image must encode each country as a distinct green value; red,
// blue and brightness are ignored.
type CountryClassifier struct {
	Table *ColorTable
}

func (cc CountryClassifier) Classify(img *Image, c geo.Coordinate) Classification {
	if img == nil || cc.Table == nil {
		return Classification{}
	}
	px := PixelAt(img, c)
	name, ok := cc.Table.Lookup(px.G)
	if !ok {
		return Classification{}
	}
	return Classification{
		Visible: true,
		Country: name,
		Color:   color.RGBA{R: px.R, G: px.G, B: px.B, A: 255},
	}
}

// NewClassifier builds the classifier for mode. Country mode needs a table.
func NewClassifier(mode Mode, threshold float64, table *ColorTable) (Classifier, error) {
	switch mode {
	case ModeLand:
		lc := NewLandClassifier()
		if threshold > 0 {
			lc.Threshold = threshold
		}
		return lc, nil
	case ModeCountry:
		if table == nil {
			return nil, fmt.Errorf("%w: country mode requires a color table", ErrInvalidTable)
		}
		return CountryClassifier{Table: table}, nil
	default:
		return nil, fmt.Errorf("unknown classification mode %q", mode)
	}
}

package raster

import (
	"fmt"
	"image/color"
)

// MaxPaletteSize is the number of distinct green shades a palette can hand
// out while keeping keys unique.
const MaxPaletteSize = 255

// GreenShades returns n evenly spaced pure-green colors from (0,0,0) to
// (0,255,0). A single shade is (0,0,0).
func GreenShades(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	shades := make([]color.RGBA, n)
	for i := range shades {
		var g uint8
		if n > 1 {
			g = uint8(255 * i / (n - 1))
		}
		shades[i] = color.RGBA{G: g, A: 255}
	}
	return shades
}

// BuildPalette assigns each country its own green shade, in input order.
func BuildPalette(countries []string) (*ColorTable, error) {
	if len(countries) > MaxPaletteSize {
		return nil, fmt.Errorf("%w: %d countries exceed the %d available shades", ErrInvalidTable, len(countries), MaxPaletteSize)
	}
	shades := GreenShades(len(countries))
	entries := make([]TableEntry, len(countries))
	for i, name := range countries {
		entries[i] = TableEntry{Green: shades[i].G, Country: name}
	}
	return NewColorTable(entries)
}

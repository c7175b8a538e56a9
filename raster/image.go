// Package raster samples equirectangular world-map images and classifies
// geographic coordinates against them.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrInvalidImage is returned when image dimensions and buffer length
// disagree.
var ErrInvalidImage = errors.New("invalid raster image")

// Image is an immutable RGBA buffer, 4 bytes per pixel, row-major.
type Image struct {
	width  int
	height int
	pix    []byte
}

// NewImage validates the buffer and takes a private copy of it.
func NewImage(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidImage, width, height)
	}
	if want := width * height * 4; len(pix) != want {
		return nil, fmt.Errorf("%w: buffer length %d, want %d for %dx%d", ErrInvalidImage, len(pix), want, width, height)
	}
	buf := make([]byte, len(pix))
	copy(buf, pix)
	return &Image{width: width, height: height, pix: buf}, nil
}

// FromImage converts any decoded image into a raster Image. Colors are
// converted to non-premultiplied RGBA, matching a canvas readback.
func FromImage(src image.Image) (*Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return NewImage(b.Dx(), b.Dy(), dst.Pix)
}

// Uniform builds a width x height image filled with c.
func Uniform(width, height int, c color.RGBA) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidImage, width, height)
	}
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &Image{width: width, height: height, pix: pix}, nil
}

func (m *Image) Width() int  { return m.width }
func (m *Image) Height() int { return m.height }

// At returns the pixel at (x, y). Indices are clamped to the image bounds.
func (m *Image) At(x, y int) color.RGBA {
	x = clampIndex(x, m.width)
	y = clampIndex(y, m.height)
	i := (y*m.width + x) * 4
	return color.RGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: m.pix[i+3]}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

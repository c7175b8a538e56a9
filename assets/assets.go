// Package assets loads the world-map raster and the country color table
// from disk and packages them as immutable values for a sampling session.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/raster"
)

// ErrNoImage is returned when no raster path was configured.
var ErrNoImage = errors.New("no raster image configured")

// Bundle is the immutable asset snapshot for one session. Image is nil when
// the raster could not be loaded; samplers treat that as "no points".
type Bundle struct {
	Image  *raster.Image
	Format string
	Table  *raster.ColorTable
}

// DecodeImage decodes any registered format (png, jpeg, gif, bmp, tiff,
// webp) into a raster Image.
func DecodeImage(r io.Reader) (*raster.Image, string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode raster: %w", err)
	}
	img, err := raster.FromImage(src)
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// LoadImage opens and decodes the raster at path.
func LoadImage(path string) (*raster.Image, string, error) {
	if path == "" {
		return nil, "", ErrNoImage
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open raster %q: %w", path, err)
	}
	defer f.Close()
	img, format, err := DecodeImage(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return img, format, nil
}

// LoadColorTable reads the CSV color table at path.
func LoadColorTable(path string) (*raster.ColorTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open color table %q: %w", path, err)
	}
	defer f.Close()
	table, err := raster.ParseColorTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Load builds a Bundle. An unreadable image is logged and leaves
// Bundle.Image nil; a configured but unreadable color table is an error,
// since country mode cannot run without it.
func Load(ctx context.Context, imagePath, tablePath string, log logging.Logger) (Bundle, error) {
	if log == nil {
		log = logging.Noop()
	}

	var b Bundle
	img, format, err := LoadImage(imagePath)
	if err != nil {
		log.Warn(ctx, "raster unavailable; no points will be produced",
			logging.String("path", imagePath), logging.Err(err))
	} else {
		b.Image, b.Format = img, format
		log.Info(ctx, "loaded raster",
			logging.String("path", imagePath),
			logging.String("format", format),
			logging.Int("width", img.Width()),
			logging.Int("height", img.Height()))
	}

	if tablePath == "" {
		return b, nil
	}
	table, err := LoadColorTable(tablePath)
	if err != nil {
		return Bundle{}, err
	}
	b.Table = table
	log.Info(ctx, "loaded color table",
		logging.String("path", tablePath),
		logging.Int("entries", table.Len()))
	return b, nil
}

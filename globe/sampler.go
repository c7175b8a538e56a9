// Package globe drives the raster sampler and the spherical projector over
// a latitude/longitude grid and keeps the resulting point set for display.
package globe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/dotted-globe/geo"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/projection"
	"github.com/signalsfoundry/dotted-globe/raster"
)

const tracerName = "github.com/signalsfoundry/dotted-globe/globe"

// DefaultRadius is the sphere radius markers are placed on.
const DefaultRadius = 2.03

// PassStats summarises one sampling pass.
type PassStats struct {
	Visible int
	Hidden  int
	Invalid int
	Elapsed time.Duration
}

// Total is the number of grid samples examined.
func (s PassStats) Total() int { return s.Visible + s.Hidden + s.Invalid }

// PassRecorder receives per-pass statistics, typically a metrics collector.
type PassRecorder interface {
	RecordSamplingPass(visible, hidden, invalid int, elapsed time.Duration)
}

// SamplerOption customises Sampler construction.
type SamplerOption func(*Sampler)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPassRecorder attaches an optional recorder for pass statistics.
func WithPassRecorder(r PassRecorder) SamplerOption {
	return func(s *Sampler) {
		s.recorder = r
	}
}

// WithWorkers fans latitude rows out to n goroutines. n <= 1 samples
// sequentially.
func WithWorkers(n int) SamplerOption {
	return func(s *Sampler) {
		s.workers = n
	}
}

// Sampler walks the grid, classifies every coordinate and projects the
// visible ones. It holds no per-pass state and may be shared.
type Sampler struct {
	grid       GridConfig
	radius     float64
	classifier raster.Classifier

	workers  int
	log      logging.Logger
	recorder PassRecorder
}

// NewSampler validates the grid and radius and returns a Sampler.
func NewSampler(grid GridConfig, radius float64, classifier raster.Classifier, opts ...SamplerOption) (*Sampler, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: %v", projection.ErrInvalidRadius, radius)
	}
	if classifier == nil {
		return nil, errors.New("globe: classifier is required")
	}
	s := &Sampler{
		grid:       grid,
		radius:     radius,
		classifier: classifier,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Grid returns the sampler's grid configuration.
func (s *Sampler) Grid() GridConfig { return s.grid }

// Radius returns the sphere radius.
func (s *Sampler) Radius() float64 { return s.radius }

// SamplePoint classifies one coordinate and, when visible, projects it.
// The boolean reports visibility.
func (s *Sampler) SamplePoint(img *raster.Image, c geo.Coordinate) (ProjectedPoint, bool, error) {
	if err := c.Validate(); err != nil {
		return ProjectedPoint{}, false, err
	}
	cls := s.classifier.Classify(img, c)
	if !cls.Visible {
		return ProjectedPoint{}, false, nil
	}
	pl, err := projection.Project(c, s.radius)
	if err != nil {
		return ProjectedPoint{}, false, err
	}
	return ProjectedPoint{
		Coordinate:  c,
		Position:    pl.Position,
		Normal:      pl.Normal,
		Orientation: pl.Orientation,
		Color:       cls.Color,
		Country:     cls.Country,
	}, true, nil
}

// Sample runs one pass over the grid. A nil image yields no points and no
// error. Points are returned in grid order (latitude ascending, then
// longitude ascending) regardless of the worker count.
func (s *Sampler) Sample(ctx context.Context, img *raster.Image) ([]ProjectedPoint, PassStats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "globe.Sample")
	defer span.End()
	ctx, log := logging.WithRunLogger(ctx, s.log)

	start := time.Now()
	if img == nil {
		log.Warn(ctx, "no raster loaded; sampling pass produces no points")
		span.SetAttributes(attribute.Bool("globe.raster_loaded", false))
		return nil, PassStats{}, nil
	}

	lats := s.grid.Latitudes()
	lons := s.grid.Longitudes()
	span.SetAttributes(
		attribute.Bool("globe.raster_loaded", true),
		attribute.Float64("globe.step", s.grid.Step),
		attribute.Float64("globe.radius", s.radius),
		attribute.Int("globe.grid_size", len(lats)*len(lons)),
		attribute.Int("globe.raster_width", img.Width()),
		attribute.Int("globe.raster_height", img.Height()),
	)

	rows := make([][]ProjectedPoint, len(lats))
	tallies := make([]PassStats, len(lats))
	sampleRow := func(i int) {
		for _, lon := range lons {
			p, ok, err := s.SamplePoint(img, geo.Coordinate{Lon: lon, Lat: lats[i]})
			switch {
			case err != nil:
				tallies[i].Invalid++
			case ok:
				rows[i] = append(rows[i], p)
				tallies[i].Visible++
			default:
				tallies[i].Hidden++
			}
		}
	}

	if err := s.forEachRow(ctx, len(lats), sampleRow); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx, "sampling pass cancelled", logging.Err(err))
		return nil, PassStats{}, err
	}

	var stats PassStats
	n := 0
	for i := range rows {
		stats.Visible += tallies[i].Visible
		stats.Hidden += tallies[i].Hidden
		stats.Invalid += tallies[i].Invalid
		n += len(rows[i])
	}
	points := make([]ProjectedPoint, 0, n)
	for _, row := range rows {
		points = append(points, row...)
	}
	stats.Elapsed = time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordSamplingPass(stats.Visible, stats.Hidden, stats.Invalid, stats.Elapsed)
	}
	span.SetAttributes(attribute.Int("globe.points", len(points)))
	log.Info(ctx, "sampling pass complete",
		logging.Int("samples", stats.Total()),
		logging.Int("points", len(points)),
		logging.Int("invalid", stats.Invalid),
		logging.String("elapsed", stats.Elapsed.String()),
	)
	return points, stats, nil
}

// forEachRow calls fn for every row index, checking ctx between rows.
// Each row is written by exactly one goroutine.
func (s *Sampler) forEachRow(ctx context.Context, n int, fn func(int)) error {
	if s.workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(i)
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()
	return err
}

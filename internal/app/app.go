// Package app wires configuration, assets, the grid sampler, the rotating
// scene and the satellite overlay into a ready-to-serve globe.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/dotted-globe/assets"
	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/api"
	"github.com/signalsfoundry/dotted-globe/internal/config"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/overlay"
	"github.com/signalsfoundry/dotted-globe/raster"
	"github.com/signalsfoundry/dotted-globe/timectrl"
)

// FrameRecorder observes animation frames. *observability.GlobeCollector
// satisfies it.
type FrameRecorder interface {
	RecordFrame(overlayMarkers int)
}

// Globe is one sampled globe and the state that animates it.
type Globe struct {
	Config  config.Config
	Bundle  assets.Bundle
	Sampler *globe.Sampler
	Scene   *globe.Scene
	Stats   globe.PassStats

	// Tracker is nil when no satellites are configured.
	Tracker *overlay.Tracker

	log logging.Logger
}

// Build loads assets and runs one sampling pass. A missing raster is not an
// error: the globe comes up empty and reports RasterLoaded=false.
func Build(ctx context.Context, cfg config.Config, log logging.Logger, recorder globe.PassRecorder) (*Globe, error) {
	if log == nil {
		log = logging.Noop()
	}

	bundle, err := assets.Load(ctx, cfg.ImagePath, cfg.ColorTablePath, log)
	if err != nil {
		return nil, err
	}
	classifier, err := raster.NewClassifier(cfg.ClassificationMode(), cfg.LandThreshold, bundle.Table)
	if err != nil {
		return nil, err
	}

	opts := []globe.SamplerOption{
		globe.WithLogger(log),
		globe.WithWorkers(cfg.Workers),
	}
	if recorder != nil {
		opts = append(opts, globe.WithPassRecorder(recorder))
	}
	sampler, err := globe.NewSampler(globe.GridConfig{Step: cfg.Step}, cfg.Radius, classifier, opts...)
	if err != nil {
		return nil, err
	}

	points, stats, err := sampler.Sample(ctx, bundle.Image)
	if err != nil {
		return nil, fmt.Errorf("sample globe: %w", err)
	}

	g := &Globe{
		Config:  cfg,
		Bundle:  bundle,
		Sampler: sampler,
		Scene:   globe.NewScene(points, cfg.Animation.RotationPerFrame),
		Stats:   stats,
		log:     log,
	}

	if len(cfg.Satellites) > 0 {
		tracker, err := overlay.NewTracker(cfg.Satellites, cfg.Radius)
		if err != nil {
			return nil, err
		}
		g.Tracker = tracker
		g.Scene.SetOverlay(tracker.Markers(time.Now()))
		log.Info(ctx, "satellite overlay enabled", logging.Int("satellites", tracker.Len()))
	}
	return g, nil
}

// Info describes the globe for the API layer.
func (g *Globe) Info() api.SceneInfo {
	return api.SceneInfo{
		Mode:         string(g.Config.ClassificationMode()),
		Step:         g.Config.Step,
		Radius:       g.Config.Radius,
		MarkerRadius: g.Config.MarkerRadius,
		RasterLoaded: g.Bundle.Image != nil,
	}
}

// Animate rotates the scene one step per frame, refreshing the satellite
// overlay at each frame's animation time, until duration of animation time
// has passed (<= 0 runs until ctx is done). onFrame, when set, runs after
// the scene has been updated. The returned channel closes when the loop
// stops.
func (g *Globe) Animate(ctx context.Context, start time.Time, duration time.Duration, recorder FrameRecorder, onFrame timectrl.Listener) <-chan struct{} {
	tc := timectrl.NewTimeController(start, g.Config.Animation.Tick, g.Config.AnimationMode())
	tc.AddListener(func(frame uint64, t time.Time) {
		g.Scene.Advance()
		if g.Tracker != nil {
			g.Scene.SetOverlay(g.Tracker.Markers(t))
		}
		if recorder != nil {
			_, overlayMarkers := g.Scene.Counts()
			recorder.RecordFrame(overlayMarkers)
		}
		if onFrame != nil {
			onFrame(frame, t)
		}
	})

	g.log.Info(ctx, "animation started",
		logging.String("mode", tc.Mode.String()),
		logging.String("tick", tc.Tick.String()),
		logging.Float64("rotation_per_frame", g.Config.Animation.RotationPerFrame))
	return tc.Start(ctx, duration)
}

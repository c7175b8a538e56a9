// Package api exposes the sampled globe over gRPC and HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
)

// ErrInvalidRequest marks client-side request errors.
var ErrInvalidRequest = errors.New("invalid request")

// SceneInfo describes how the current point set was produced.
type SceneInfo struct {
	Mode         string
	Step         float64
	Radius       float64
	MarkerRadius float64
	RasterLoaded bool
}

// Query selects points from the scene.
type Query struct {
	Country string // exact, case-insensitive match; empty matches all
	Limit   int    // 0 means no limit
	World   bool   // rotated world-space positions, overlay included
}

// SceneStatus is a point-in-time summary of the scene.
type SceneStatus struct {
	SceneInfo
	Rotation float64
	Frames   uint64
	Points   int
	Overlay  int
}

// Service answers queries against a globe.Scene. It is shared by the gRPC
// and HTTP front ends.
type Service struct {
	scene *globe.Scene
	info  SceneInfo
	log   logging.Logger
}

// NewService wraps scene.
func NewService(scene *globe.Scene, info SceneInfo, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{scene: scene, info: info, log: log}
}

// Points returns the points matching q and the number that matched before
// the limit was applied.
func (s *Service) Points(ctx context.Context, q Query) ([]globe.ProjectedPoint, int, error) {
	if q.Limit < 0 {
		return nil, 0, fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidRequest, q.Limit)
	}
	if s.scene == nil {
		return nil, 0, nil
	}

	var all []globe.ProjectedPoint
	if q.World {
		all = s.scene.Snapshot()
	} else {
		all = s.scene.Points()
	}

	country := strings.TrimSpace(q.Country)
	matched := all[:0]
	for _, p := range all {
		if country != "" && !strings.EqualFold(p.Country, country) {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	logging.FromContext(ctx, s.log).Debug(ctx, "points query",
		logging.String("country", country),
		logging.Int("limit", q.Limit),
		logging.Bool("world", q.World),
		logging.Int("matched", total),
	)
	return matched, total, nil
}

// Status summarises the scene.
func (s *Service) Status() SceneStatus {
	st := SceneStatus{SceneInfo: s.info}
	if s.scene != nil {
		st.Rotation = s.scene.Rotation()
		st.Frames = s.scene.Frames()
		st.Points, st.Overlay = s.scene.Counts()
	}
	return st
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/internal/observability"
)

const httpServiceLabel = "http"

// PointsResponse is the body of GET /points.
type PointsResponse struct {
	Total  int               `json:"total"`
	Points []globe.PointJSON `json:"points"`
}

// SceneResponse is the body of GET /scene.
type SceneResponse struct {
	Mode         string  `json:"mode"`
	Step         float64 `json:"step"`
	Radius       float64 `json:"radius"`
	MarkerRadius float64 `json:"marker_radius"`
	RasterLoaded bool    `json:"raster_loaded"`
	Rotation     float64 `json:"rotation"`
	Frames       uint64  `json:"frames"`
	Points       int     `json:"points"`
	Overlay      int     `json:"overlay"`
}

// NewHTTPHandler routes the HTTP front end:
//
//	GET /points?country=&limit=&world=
//	GET /scene
//	GET /healthz
//	GET /metrics
func NewHTTPHandler(svc *Service, collector *observability.GlobeCollector, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(runLogger(log))
	r.Use(requestMetrics(collector))

	r.Get("/points", func(w http.ResponseWriter, r *http.Request) {
		q, err := queryFromRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		points, total, err := svc.Points(r.Context(), q)
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, PointsResponse{Total: total, Points: globe.PointsJSON(points)})
	})

	r.Get("/scene", func(w http.ResponseWriter, _ *http.Request) {
		st := svc.Status()
		writeJSON(w, http.StatusOK, SceneResponse{
			Mode:         st.Mode,
			Step:         st.Step,
			Radius:       st.Radius,
			MarkerRadius: st.MarkerRadius,
			RasterLoaded: st.RasterLoaded,
			Rotation:     st.Rotation,
			Frames:       st.Frames,
			Points:       st.Points,
			Overlay:      st.Overlay,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Status().RasterLoaded {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no raster"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", collector.Handler())

	return r
}

// runLogger carries chi's request id as the run_id of a request-scoped
// logger.
func runLogger(base logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logging.ContextWithRunID(ctx, id)
			}
			ctx, reqLog := logging.WithRunLogger(ctx, base.With(logging.String("path", r.URL.Path)))
			ctx = logging.ContextWithLogger(ctx, reqLog)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestMetrics records api_requests_total under the "http" service label,
// keyed by route pattern so unmatched paths do not explode cardinality.
func requestMetrics(collector *observability.GlobeCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			collector.ObserveRequest(httpServiceLabel, route, strconv.Itoa(code), time.Since(start))
		})
	}
}

func queryFromRequest(r *http.Request) (Query, error) {
	values := r.URL.Query()
	q := Query{Country: values.Get("country")}
	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("%w: limit %q is not an integer", ErrInvalidRequest, s)
		}
		q.Limit = n
	}
	if s := values.Get("world"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("%w: world %q is not a bool", ErrInvalidRequest, s)
		}
		q.World = b
	}
	return q, nil
}

func httpStatus(err error) int {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

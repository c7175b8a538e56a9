package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Sample results used as the "result" label on globe_samples_total.
const (
	ResultVisible = "visible"
	ResultHidden  = "hidden"
	ResultInvalid = "invalid"
)

// GlobeCollector bundles Prometheus metrics for sampling passes, the
// animation loop and the API surface.
type GlobeCollector struct {
	gatherer prometheus.Gatherer

	Samples      *prometheus.CounterVec
	PassDuration prometheus.Histogram
	Points       prometheus.Gauge
	Overlay      prometheus.Gauge
	Frames       prometheus.Counter

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewGlobeCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry reuses the existing collectors.
func NewGlobeCollector(reg prometheus.Registerer) (*GlobeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	samples, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_samples_total",
		Help: "Grid samples examined, labeled by classification result.",
	}, []string{"result"}), "globe_samples_total")
	if err != nil {
		return nil, err
	}
	passDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_sampling_pass_duration_seconds",
		Help:    "Wall-clock duration of a full grid sampling pass.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}), "globe_sampling_pass_duration_seconds")
	if err != nil {
		return nil, err
	}
	points, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globe_points",
		Help: "Markers produced by the most recent sampling pass.",
	}), "globe_points")
	if err != nil {
		return nil, err
	}
	overlay, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globe_overlay_markers",
		Help: "Overlay markers currently shown on the globe.",
	}), "globe_overlay_markers")
	if err != nil {
		return nil, err
	}
	frames, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_frames_total",
		Help: "Animation frames advanced.",
	}), "globe_frames_total")
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Handled API requests, labeled by service, method, and status code.",
	}, []string{"service", "method", "code"}), "api_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &GlobeCollector{
		gatherer:     gatherer,
		Samples:      samples,
		PassDuration: passDuration,
		Points:       points,
		Overlay:      overlay,
		Frames:       frames,
		RPCRequests:  requests,
		RPCDurations: durations,
	}, nil
}

// RecordSamplingPass satisfies globe.PassRecorder.
func (c *GlobeCollector) RecordSamplingPass(visible, hidden, invalid int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Samples.WithLabelValues(ResultVisible).Add(float64(visible))
	c.Samples.WithLabelValues(ResultHidden).Add(float64(hidden))
	c.Samples.WithLabelValues(ResultInvalid).Add(float64(invalid))
	c.PassDuration.Observe(elapsed.Seconds())
	c.Points.Set(float64(visible))
}

// RecordFrame counts one animation frame and the overlay size at that
// frame.
func (c *GlobeCollector) RecordFrame(overlayMarkers int) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.Overlay.Set(float64(overlayMarkers))
}

// ObserveRequest records one API call.
func (c *GlobeCollector) ObserveRequest(service, method, code string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RPCRequests.WithLabelValues(service, method, code).Inc()
	c.RPCDurations.WithLabelValues(service, method).Observe(elapsed.Seconds())
}

// UnaryServerInterceptor records request counts and durations for unary
// RPCs.
func (c *GlobeCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.ObserveRequest(service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GlobeCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and
// method components, returning "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds col to reg, or returns the already registered collector of
// the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return col, nil
}

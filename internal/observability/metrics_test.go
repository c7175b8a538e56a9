package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRecordSamplingPass(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}

	c.RecordSamplingPass(10, 5, 1, 20*time.Millisecond)
	c.RecordSamplingPass(4, 11, 0, 10*time.Millisecond)

	if got := testutil.ToFloat64(c.Samples.WithLabelValues(ResultVisible)); got != 14 {
		t.Fatalf("visible samples = %v, want 14", got)
	}
	if got := testutil.ToFloat64(c.Samples.WithLabelValues(ResultHidden)); got != 16 {
		t.Fatalf("hidden samples = %v, want 16", got)
	}
	if got := testutil.ToFloat64(c.Points); got != 4 {
		t.Fatalf("globe_points = %v, want latest pass 4", got)
	}
	if n := histogramSampleCount(t, reg, "globe_sampling_pass_duration_seconds", nil); n != 2 {
		t.Fatalf("pass duration sample_count = %d, want 2", n)
	}
}

func TestRecordFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	c.RecordFrame(2)
	c.RecordFrame(3)
	if got := testutil.ToFloat64(c.Frames); got != 2 {
		t.Fatalf("frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Overlay); got != 3 {
		t.Fatalf("overlay = %v, want 3", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *GlobeCollector
	c.RecordSamplingPass(1, 1, 1, time.Millisecond)
	c.RecordFrame(1)
	c.ObserveRequest("s", "m", "OK", time.Millisecond)
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("first NewGlobeCollector: %v", err)
	}
	b, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("second NewGlobeCollector: %v", err)
	}
	a.Frames.Inc()
	if got := testutil.ToFloat64(b.Frames); got != 1 {
		t.Fatalf("second collector frames = %v, want shared 1", got)
	}
}

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	interceptor := c.UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: "/globe.v1.GlobeService/ListPoints"}
	if _, err := interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(c.RPCRequests.WithLabelValues("GlobeService", "ListPoints", "OK")); got != 1 {
		t.Fatalf("OK requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RPCRequests.WithLabelValues("GlobeService", "ListPoints", "InvalidArgument")); got != 1 {
		t.Fatalf("InvalidArgument requests = %v, want 1", got)
	}
	if n := histogramSampleCount(t, reg, "api_request_duration_seconds", map[string]string{
		"service": "GlobeService",
		"method":  "ListPoints",
	}); n != 2 {
		t.Fatalf("api_request_duration_seconds sample_count = %d, want 2", n)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	c.RecordSamplingPass(3, 4, 0, time.Millisecond)
	c.RecordFrame(0)
	c.ObserveRequest("http", "points", "200", time.Millisecond)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"globe_samples_total",
		"globe_sampling_pass_duration_seconds",
		"globe_points 3",
		"globe_frames_total 1",
		"api_requests_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/globe.v1.GlobeService/GetScene": {"GlobeService", "GetScene"},
		"":                                {"unknown", "unknown"},
		"nonsense":                        {"unknown", "unknown"},
	}
	for in, want := range cases {
		s, m := SplitMethod(in)
		if s != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", in, s, m, want[0], want[1])
		}
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "globe-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "sampling-pass")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "sampling-pass") {
		t.Fatalf("span not exported: %q", buf.String())
	}

	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("unsupported exporter accepted")
	}
	if _, err := InitTracing(context.Background(), TracingConfig{}, nil); err != nil {
		t.Fatalf("disabled tracing: %v", err)
	}
}

func TestApplyTracingEnv(t *testing.T) {
	env := map[string]string{
		"GLOBE_TRACING_ENABLED":      "true",
		"GLOBE_TRACING_EXPORTER":     "OTLP",
		"GLOBE_TRACING_SAMPLE_RATIO": "0.25",
		"GLOBE_OTLP_ENDPOINT":        "collector:4317",
	}
	cfg := DefaultTracingConfig()
	if err := ApplyTracingEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyTracingEnv: %v", err)
	}
	if !cfg.Enabled || cfg.Exporter != ExporterOTLP || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ServiceName != "dotted-globe" {
		t.Fatalf("service name = %q, want default", cfg.ServiceName)
	}

	for key, val := range map[string]string{
		"GLOBE_TRACING_ENABLED":      "perhaps",
		"GLOBE_TRACING_SAMPLE_RATIO": "1.5",
	} {
		cfg := DefaultTracingConfig()
		cfg.Enabled = true
		err := ApplyTracingEnv(&cfg, func(k string) string {
			if k == key {
				return val
			}
			return ""
		})
		if !errors.Is(err, ErrInvalidTracing) {
			t.Fatalf("%s=%s: err = %v, want ErrInvalidTracing", key, val, err)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

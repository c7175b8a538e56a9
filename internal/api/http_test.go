package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/dotted-globe/internal/observability"
)

func TestHTTPPoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	srv := httptest.NewServer(NewHTTPHandler(newTestService(true), collector, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/points?country=genovia")
	if err != nil {
		t.Fatalf("GET /points: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body PointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.Points) != 1 || body.Points[0].Country != "Genovia" {
		t.Fatalf("body = %+v, want one Genovia point", body)
	}
	if body.Points[0].Color != [3]uint8{0, 68, 0} {
		t.Fatalf("color = %v, want [0 68 0]", body.Points[0].Color)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("http", "/points", "200")); got != 1 {
		t.Fatalf("http /points 200 count = %v, want 1", got)
	}
}

func TestHTTPPointsBadQuery(t *testing.T) {
	h := NewHTTPHandler(newTestService(true), nil, nil)
	for _, q := range []string{"limit=abc", "limit=-2", "world=maybe"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/points?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid request") {
			t.Fatalf("%s: body = %q", q, rec.Body.String())
		}
	}
}

func TestHTTPScene(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTTPHandler(newTestService(true), nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scene", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body SceneResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Points != 4 || body.Mode != "country" || !body.RasterLoaded {
		t.Fatalf("scene = %+v", body)
	}
}

func TestHTTPHealthz(t *testing.T) {
	for _, tc := range []struct {
		loaded bool
		want   int
	}{
		{true, http.StatusOK},
		{false, http.StatusServiceUnavailable},
	} {
		rec := httptest.NewRecorder()
		NewHTTPHandler(newTestService(tc.loaded), nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tc.want {
			t.Fatalf("loaded=%v: status = %d, want %d", tc.loaded, rec.Code, tc.want)
		}
	}
}

func TestHTTPMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	collector.RecordFrame(2)

	rec := httptest.NewRecorder()
	NewHTTPHandler(newTestService(true), collector, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "globe_frames_total 1") {
		t.Fatalf("metrics body missing globe_frames_total:\n%s", rec.Body.String())
	}
}

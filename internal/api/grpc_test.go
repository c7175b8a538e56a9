package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/dotted-globe/internal/observability"
)

func startBufServer(t *testing.T, svc *Service, collector *observability.GlobeCollector) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server, _ := NewServer(svc, collector, nil)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCListPoints(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	collector, err := observability.NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	client := NewGlobeClient(startBufServer(t, newTestService(true), collector))

	req, err := structpb.NewStruct(map[string]any{"country": "Wakanda", "limit": 1})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", "req-1")
	resp, err := client.ListPoints(ctx, req)
	if err != nil {
		t.Fatalf("ListPoints: %v", err)
	}

	if total := resp.GetFields()["total"].GetNumberValue(); total != 3 {
		t.Fatalf("total = %v, want 3", total)
	}
	points := resp.GetFields()["points"].GetListValue().GetValues()
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	p := points[0].GetStructValue().GetFields()
	if got := p["country"].GetStringValue(); got != "Wakanda" {
		t.Fatalf("country = %q, want Wakanda", got)
	}
	if got := len(p["orientation"].GetListValue().GetValues()); got != 4 {
		t.Fatalf("orientation has %d components, want 4", got)
	}
	if got := p["color"].GetListValue().GetValues()[1].GetNumberValue(); got != 34 {
		t.Fatalf("green = %v, want 34", got)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("GlobeService", "ListPoints", codes.OK.String())); got != 1 {
		t.Fatalf("ListPoints OK count = %v, want 1", got)
	}
}

func TestGRPCListPointsInvalidRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := NewGlobeClient(startBufServer(t, newTestService(true), nil))

	for name, fields := range map[string]map[string]any{
		"negative limit":    {"limit": -1},
		"fractional limit":  {"limit": 1.5},
		"country not text":  {"country": 7},
		"world not boolean": {"world": "yes"},
	} {
		req, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatalf("%s: NewStruct: %v", name, err)
		}
		_, err = client.ListPoints(ctx, req)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%s: code = %v, want InvalidArgument", name, status.Code(err))
		}
	}
}

func TestGRPCGetScene(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc := newTestService(true)
	svc.scene.Advance()
	client := NewGlobeClient(startBufServer(t, svc, nil))

	resp, err := client.GetScene(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	f := resp.GetFields()
	if f["mode"].GetStringValue() != "country" {
		t.Fatalf("mode = %q", f["mode"].GetStringValue())
	}
	if f["frames"].GetNumberValue() != 1 || f["points"].GetNumberValue() != 4 {
		t.Fatalf("frames/points = %v/%v, want 1/4", f["frames"].GetNumberValue(), f["points"].GetNumberValue())
	}
	if !f["raster_loaded"].GetBoolValue() {
		t.Fatalf("raster_loaded = false, want true")
	}
}

func TestGRPCHealthReflectsRaster(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, tc := range []struct {
		loaded bool
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{loaded: true, want: healthpb.HealthCheckResponse_SERVING},
		{loaded: false, want: healthpb.HealthCheckResponse_NOT_SERVING},
	} {
		conn := startBufServer(t, newTestService(tc.loaded), nil)
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: GlobeServiceName})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if resp.GetStatus() != tc.want {
			t.Fatalf("loaded=%v: status = %v, want %v", tc.loaded, resp.GetStatus(), tc.want)
		}
	}
}

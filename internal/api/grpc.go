package api

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/internal/observability"
)

// GRPCServer implements GlobeServer on top of a Service.
type GRPCServer struct {
	svc *Service
	log logging.Logger
}

var _ GlobeServer = (*GRPCServer)(nil)

// NewGRPCServer wraps svc for the gRPC front end.
func NewGRPCServer(svc *Service, log logging.Logger) *GRPCServer {
	if log == nil {
		log = logging.Noop()
	}
	return &GRPCServer{svc: svc, log: log}
}

// ListPoints returns the points matching the request filters.
func (s *GRPCServer) ListPoints(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := queryFromStruct(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	points, total, err := s.svc.Points(ctx, q)
	if err != nil {
		logging.FromContext(ctx, s.log).Warn(ctx, "ListPoints failed", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return pointsStruct(points, total), nil
}

// GetScene reports the scene status.
func (s *GRPCServer) GetScene(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return statusStruct(s.svc.Status()), nil
}

// NewServer builds a grpc.Server carrying GlobeService and the standard
// health service. The health status is SERVING once a raster is loaded and
// NOT_SERVING otherwise.
func NewServer(svc *Service, collector *observability.GlobeCollector, log logging.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if log == nil {
		log = logging.Noop()
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RunIDUnaryServerInterceptor(log),
			SpanAttributesUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}
	server := grpc.NewServer(append(base, opts...)...)
	RegisterGlobeServer(server, NewGRPCServer(svc, log))

	healthSrv := health.NewServer()
	state := healthpb.HealthCheckResponse_NOT_SERVING
	if svc != nil && svc.Status().RasterLoaded {
		state = healthpb.HealthCheckResponse_SERVING
	}
	healthSrv.SetServingStatus("", state)
	healthSrv.SetServingStatus(GlobeServiceName, state)
	healthpb.RegisterHealthServer(server, healthSrv)

	return server, healthSrv
}

func queryFromStruct(req *structpb.Struct) (Query, error) {
	var q Query
	if req == nil {
		return q, nil
	}
	fields := req.GetFields()
	if v, ok := fields["country"]; ok {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return q, fmt.Errorf("%w: country must be a string", ErrInvalidRequest)
		}
		q.Country = s.StringValue
	}
	if v, ok := fields["limit"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return q, fmt.Errorf("%w: limit must be a number", ErrInvalidRequest)
		}
		if n.NumberValue != math.Trunc(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
			return q, fmt.Errorf("%w: limit must be an integer, got %v", ErrInvalidRequest, n.NumberValue)
		}
		q.Limit = int(n.NumberValue)
	}
	if v, ok := fields["world"]; ok {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return q, fmt.Errorf("%w: world must be a bool", ErrInvalidRequest)
		}
		q.World = b.BoolValue
	}
	return q, nil
}

func pointsStruct(points []globe.ProjectedPoint, total int) *structpb.Struct {
	list := make([]*structpb.Value, len(points))
	for i, p := range points {
		list[i] = structpb.NewStructValue(pointStruct(p.JSON()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"points": structpb.NewListValue(&structpb.ListValue{Values: list}),
		"total":  structpb.NewNumberValue(float64(total)),
	}}
}

func pointStruct(p globe.PointJSON) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"lon":         structpb.NewNumberValue(p.Lon),
		"lat":         structpb.NewNumberValue(p.Lat),
		"position":    numberList(p.Position[:]...),
		"normal":      numberList(p.Normal[:]...),
		"orientation": numberList(p.Orientation[:]...),
		"color":       numberList(float64(p.Color[0]), float64(p.Color[1]), float64(p.Color[2])),
	}
	if p.Country != "" {
		fields["country"] = structpb.NewStringValue(p.Country)
	}
	return &structpb.Struct{Fields: fields}
}

func numberList(vs ...float64) *structpb.Value {
	values := make([]*structpb.Value, len(vs))
	for i, v := range vs {
		values[i] = structpb.NewNumberValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func statusStruct(st SceneStatus) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"mode":          structpb.NewStringValue(st.Mode),
		"step":          structpb.NewNumberValue(st.Step),
		"radius":        structpb.NewNumberValue(st.Radius),
		"marker_radius": structpb.NewNumberValue(st.MarkerRadius),
		"raster_loaded": structpb.NewBoolValue(st.RasterLoaded),
		"rotation":      structpb.NewNumberValue(st.Rotation),
		"frames":        structpb.NewNumberValue(float64(st.Frames)),
		"points":        structpb.NewNumberValue(float64(st.Points)),
		"overlay":       structpb.NewNumberValue(float64(st.Overlay)),
	}}
}

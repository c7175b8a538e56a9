package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// GlobeService carries well-known protobuf types, so no generated code is
// needed on either side of the wire.
const (
	GlobeServiceName     = "globe.v1.GlobeService"
	ListPointsFullMethod = "/" + GlobeServiceName + "/ListPoints"
	GetSceneFullMethod   = "/" + GlobeServiceName + "/GetScene"
)

// GlobeServer is the server API for GlobeService.
//
// ListPoints accepts a Struct with optional "country" (string), "limit"
// (number) and "world" (bool) fields and returns {"points": [...],
// "total": n}. GetScene returns the scene status.
type GlobeServer interface {
	ListPoints(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScene(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterGlobeServer registers srv on s.
func RegisterGlobeServer(s grpc.ServiceRegistrar, srv GlobeServer) {
	s.RegisterService(&GlobeServiceDesc, srv)
}

// GlobeServiceDesc is the grpc.ServiceDesc for GlobeService.
var GlobeServiceDesc = grpc.ServiceDesc{
	ServiceName: GlobeServiceName,
	HandlerType: (*GlobeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPoints", Handler: listPointsHandler},
		{MethodName: "GetScene", Handler: getSceneHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "globe/v1/globe.proto",
}

func listPointsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GlobeServer).ListPoints(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListPointsFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GlobeServer).ListPoints(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getSceneHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GlobeServer).GetScene(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSceneFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GlobeServer).GetScene(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// GlobeClient is the client API for GlobeService.
type GlobeClient struct {
	cc grpc.ClientConnInterface
}

// NewGlobeClient wraps a client connection.
func NewGlobeClient(cc grpc.ClientConnInterface) *GlobeClient {
	return &GlobeClient{cc: cc}
}

func (c *GlobeClient) ListPoints(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListPointsFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GlobeClient) GetScene(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSceneFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/dotted-globe/geo"
	"github.com/signalsfoundry/dotted-globe/globe"
	"github.com/signalsfoundry/dotted-globe/projection"
	"github.com/signalsfoundry/dotted-globe/raster"
)

// ToStatusError maps sampler errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, projection.ErrInvalidRadius),
		errors.Is(err, globe.ErrInvalidGrid):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, raster.ErrInvalidImage),
		errors.Is(err, raster.ErrInvalidTable):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusBadRequest:           codes.InvalidArgument,
	StatusValidationFailed:     codes.InvalidArgument,
	StatusUnsupportedMediaType: codes.InvalidArgument,
	StatusUnauthorized:         codes.Unauthenticated,
	StatusForbidden:            codes.PermissionDenied,
	StatusNotFound:             codes.NotFound,
	// a budget conflict is a lost race; clients may retry
	StatusConflict:            codes.Aborted,
	StatusUnprocessableEntity: codes.FailedPrecondition,
	StatusTooManyRequests:     codes.ResourceExhausted,
	StatusClientClosedRequest: codes.Canceled,
	StatusNotImplemented:      codes.Unimplemented,
	StatusBadGateway:          codes.Unavailable,
	StatusServiceUnavailable:  codes.Unavailable,
	StatusTimeout:             codes.DeadlineExceeded,
	StatusGatewayTimeout:      codes.DeadlineExceeded,
	StatusInternal:            codes.Internal,
}

func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError converts err into a status error. Errors that already carry a
// gRPC status pass through unchanged.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var base BaseError
	if errors.As(err, &base) {
		return status.Error(base.Code.GRPCCode(), base.messageWithErr())
	}
	return status.Error(codes.Internal, err.Error())
}

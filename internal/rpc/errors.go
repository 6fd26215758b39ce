package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// codeTable is checked in order; the first matching sentinel wins.
var codeTable = []struct {
	err  error
	code codes.Code
}{
	{model.ErrInvalidRequest, codes.InvalidArgument},
	{model.ErrUnauthorized, codes.Unauthenticated},
	{model.ErrForbidden, codes.PermissionDenied},
	{model.ErrNotFound, codes.NotFound},
	{model.ErrDuplicateBooking, codes.FailedPrecondition},
	{model.ErrLimitExceeded, codes.FailedPrecondition},
	{model.ErrCapacityExceeded, codes.FailedPrecondition},
	{model.ErrInvalidTransition, codes.Aborted},
	{model.ErrPersistence, codes.Internal},
	{model.ErrUpstream, codes.Unavailable},
}

// Code maps a core error to its gRPC status code.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codes.Internal
}

// statusError converts err into a gRPC status error.  Internal failures
// carry a generic message so storage details do not leak to clients.
func statusError(err error) error {
	code := Code(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

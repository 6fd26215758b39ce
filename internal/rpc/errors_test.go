package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
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
		{fmt.Errorf("%w: schedule 7", model.ErrNotFound), codes.NotFound},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Code(tc.err), "%v", tc.err)
	}
}

func TestStatusErrorHidesInternals(t *testing.T) {
	err := statusError(fmt.Errorf("%w: dial tcp 10.0.0.3:3306", model.ErrPersistence))
	assert.Equal(t, "internal error", status.Convert(err).Message())

	err = statusError(fmt.Errorf("%w: 3 seats left", model.ErrCapacityExceeded))
	assert.Contains(t, status.Convert(err).Message(), "3 seats left")
}

package rpc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reservation.ReservationService"

const (
	createMethod = "/" + ServiceName + "/CreateReservation"
	usersMethod  = "/" + ServiceName + "/GetUsersByContentScheduleId"
)

// Reservations is the part of service.ReservationService served here.
type Reservations interface {
	Create(ctx context.Context, userID string, req service.CreateRequest) (model.Reservation, error)
	UsersForSchedule(ctx context.Context, scheduleID uint64) ([]string, error)
}

// Server implements the reservation gRPC service.
type Server struct {
	reservations Reservations
	identity     service.IdentityGateway
	log          *zap.Logger
}

// NewServer returns a Server backed by the given service and identity
// gateway.
func NewServer(reservations Reservations, identity service.IdentityGateway, log *zap.Logger) *Server {
	return &Server{reservations: reservations, identity: identity, log: log.Named("rpc")}
}

// Register attaches srv to a grpc.Server.
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

// CreateReservation validates the caller token from the "authorization"
// metadata and books the requested seats.
func (s *Server) CreateReservation(ctx context.Context, req *CreateReservationRequest) (*CreateReservationResponse, error) {
	token := bearerFromMetadata(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	userID, err := s.identity.Validate(ctx, token)
	if err != nil {
		return nil, statusError(err)
	}

	res, err := s.reservations.Create(ctx, userID, service.CreateRequest{
		ScheduleID:  req.ContentScheduleID,
		RequestedAt: req.RequestedAt,
		Adult:       req.AdultCount,
		Child:       req.ChildCount,
	})
	if err != nil {
		if failed(err) {
			return nil, statusError(err)
		}
		return &CreateReservationResponse{Success: false, Message: err.Error()}, nil
	}
	return &CreateReservationResponse{Success: true, Message: "reservation created", ReservationID: res.ID}, nil
}

// GetUsersByContentScheduleId returns the users holding a live reservation
// for the schedule.
func (s *Server) GetUsersByContentScheduleId(ctx context.Context, req *UsersByScheduleRequest) (*UsersByScheduleResponse, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(req.ContentScheduleID), 10, 64)
	if err != nil || id == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid content_schedule_id %q", req.ContentScheduleID)
	}
	users, err := s.reservations.UsersForSchedule(ctx, id)
	if err != nil {
		return nil, statusError(err)
	}
	return &UsersByScheduleResponse{UserIDs: users}, nil
}

// failed reports whether err is an infrastructure or auth failure rather
// than a booking rejection.
func failed(err error) bool {
	return errors.Is(err, model.ErrPersistence) || errors.Is(err, model.ErrUpstream) ||
		errors.Is(err, model.ErrUnauthorized) || Code(err) == codes.Internal
}

func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

// LoggingInterceptor logs every unary call once with its status code.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = log.Named("rpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			log.Info("rpc", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			log.Error("rpc", append(fields, zap.Error(err))...)
		default:
			log.Warn("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// reservationServer is the handler type checked by grpc.Server.RegisterService.
type reservationServer interface {
	CreateReservation(context.Context, *CreateReservationRequest) (*CreateReservationResponse, error)
	GetUsersByContentScheduleId(context.Context, *UsersByScheduleRequest) (*UsersByScheduleResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*reservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateReservation", Handler: createHandler},
		{MethodName: "GetUsersByContentScheduleId", Handler: usersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reservation.proto",
}

func createHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateReservationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(reservationServer).CreateReservation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(reservationServer).CreateReservation(ctx, req.(*CreateReservationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func usersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UsersByScheduleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(reservationServer).GetUsersByContentScheduleId(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: usersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(reservationServer).GetUsersByContentScheduleId(ctx, req.(*UsersByScheduleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

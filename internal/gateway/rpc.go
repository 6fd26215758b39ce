package gateway

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/rpc"
)

const (
	validateTokenMethod = "/auth.AuthService/ValidateToken"
	findUserMethod      = "/user.UserService/FindById"
)

// Dial opens a lazily connecting client to a gateway service.  Outbound
// calls carry trace context when a tracer provider is installed.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// message ValidateTokenRequest { string token = 1; }
type validateTokenRequest struct {
	Token string
}

func (m *validateTokenRequest) MarshalWire() []byte { return rpc.AppendString(nil, 1, m.Token) }

func (m *validateTokenRequest) UnmarshalWire(b []byte) error {
	*m = validateTokenRequest{}
	return rpc.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return rpc.ConsumeString(typ, b, &m.Token)
		}
		return 0
	})
}

// message ValidateTokenResponse { string user_id = 1; }
type validateTokenResponse struct {
	UserID string
}

func (m *validateTokenResponse) MarshalWire() []byte { return rpc.AppendString(nil, 1, m.UserID) }

func (m *validateTokenResponse) UnmarshalWire(b []byte) error {
	*m = validateTokenResponse{}
	return rpc.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return rpc.ConsumeString(typ, b, &m.UserID)
		}
		return 0
	})
}

// RPCIdentity validates tokens against the remote auth service.
type RPCIdentity struct {
	conn grpc.ClientConnInterface
}

// NewRPCIdentity returns an identity gateway using conn.
func NewRPCIdentity(conn grpc.ClientConnInterface) *RPCIdentity {
	return &RPCIdentity{conn: conn}
}

// Validate returns the user id behind token.  An empty user id or an
// Unauthenticated status fail closed with model.ErrUnauthorized; any
// other failure is model.ErrUpstream.
func (g *RPCIdentity) Validate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", model.ErrUnauthorized)
	}
	out := new(validateTokenResponse)
	if err := g.conn.Invoke(ctx, validateTokenMethod, &validateTokenRequest{Token: token}, out); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument:
			return "", fmt.Errorf("%w: %s", model.ErrUnauthorized, status.Convert(err).Message())
		}
		return "", fmt.Errorf("%w: auth service: %w", model.ErrUpstream, err)
	}
	if out.UserID == "" {
		return "", fmt.Errorf("%w: token rejected", model.ErrUnauthorized)
	}
	return out.UserID, nil
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/rpc"
)

const profileKeyPrefix = "profile:limits:"

// message UserId { string random_id = 1; }
type findUserRequest struct {
	RandomID string
}

func (m *findUserRequest) MarshalWire() []byte { return rpc.AppendString(nil, 1, m.RandomID) }

func (m *findUserRequest) UnmarshalWire(b []byte) error {
	*m = findUserRequest{}
	return rpc.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return rpc.ConsumeString(typ, b, &m.RandomID)
		}
		return 0
	})
}

// message UserResponse {
//   string random_id = 1;
//   int32 max_adult = 2;
//   int32 max_child = 3;
// }
type findUserResponse struct {
	RandomID string
	MaxAdult int32
	MaxChild int32
}

func (m *findUserResponse) MarshalWire() []byte {
	b := rpc.AppendString(nil, 1, m.RandomID)
	b = rpc.AppendInt32(b, 2, m.MaxAdult)
	return rpc.AppendInt32(b, 3, m.MaxChild)
}

func (m *findUserResponse) UnmarshalWire(b []byte) error {
	*m = findUserResponse{}
	return rpc.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return rpc.ConsumeString(typ, b, &m.RandomID)
		case 2:
			return rpc.ConsumeInt32(typ, b, &m.MaxAdult)
		case 3:
			return rpc.ConsumeInt32(typ, b, &m.MaxChild)
		}
		return 0
	})
}

// RPCProfile fetches seat limits from the remote user service.  When a
// Redis client is set, results are cached under profile:limits:<user>
// for ttl; cache failures fall back to the RPC.
type RPCProfile struct {
	conn  grpc.ClientConnInterface
	cache *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

// NewRPCProfile returns a profile gateway using conn.  cache may be nil.
func NewRPCProfile(conn grpc.ClientConnInterface, cache *redis.Client, ttl time.Duration, log *zap.Logger) *RPCProfile {
	if ttl <= 0 {
		cache = nil
	}
	return &RPCProfile{conn: conn, cache: cache, ttl: ttl, log: log.Named("profile")}
}

// Limits returns the seat ceilings of userID.  Failures of the user
// service are reported as model.ErrUpstream.
func (g *RPCProfile) Limits(ctx context.Context, userID string) (model.UserLimits, error) {
	if limits, ok := g.cached(ctx, userID); ok {
		return limits, nil
	}

	out := new(findUserResponse)
	if err := g.conn.Invoke(ctx, findUserMethod, &findUserRequest{RandomID: userID}, out); err != nil {
		return model.UserLimits{}, fmt.Errorf("%w: user service: %w", model.ErrUpstream, err)
	}
	limits := model.UserLimits{MaxAdult: out.MaxAdult, MaxChild: out.MaxChild}
	g.store(ctx, userID, limits)
	return limits, nil
}

func (g *RPCProfile) cached(ctx context.Context, userID string) (model.UserLimits, bool) {
	if g.cache == nil {
		return model.UserLimits{}, false
	}
	raw, err := g.cache.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.log.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return model.UserLimits{}, false
	}
	var limits model.UserLimits
	if err := json.Unmarshal(raw, &limits); err != nil {
		g.log.Warn("profile cache entry corrupt", zap.String("user_id", userID), zap.Error(err))
		return model.UserLimits{}, false
	}
	return limits, true
}

func (g *RPCProfile) store(ctx context.Context, userID string, limits model.UserLimits) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(limits)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, profileKeyPrefix+userID, raw, g.ttl).Err(); err != nil {
		g.log.Warn("profile cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// StaticProfile grants every user the same limits.  It serves local runs
// without a user service.
type StaticProfile model.UserLimits

// Limits implements service.ProfileGateway.
func (p StaticProfile) Limits(context.Context, string) (model.UserLimits, error) {
	return model.UserLimits(p), nil
}

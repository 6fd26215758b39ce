package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/schedule-reservation/internal/config"
	"github.com/iliyamo/schedule-reservation/internal/model"
)

type stubIdentity map[string]string

func (s stubIdentity) Validate(_ context.Context, token string) (string, error) {
	switch token {
	case "down":
		return "", fmt.Errorf("%w: auth service", model.ErrUpstream)
	}
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", model.ErrUnauthorized
}

func whoami(c echo.Context) error { return c.String(http.StatusOK, UserID(c)) }

func do(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIdentity(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, Identity(stubIdentity{"good": "u1"}))

	rec := do(e, http.MethodGet, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	rec = do(e, http.MethodGet, "/me", "bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, auth := range []string{"", "good", "Basic Zm9vOmJhcg==", "Bearer bad"} {
		rec = do(e, http.MethodGet, "/me", auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
	}

	rec = do(e, http.MethodGet, "/me", "Bearer down")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.Use(RateLimit(cfg, rdb, zaptest.NewLogger(t)))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	first := do(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/ping", "").Code)

	blocked := do(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Len(t, mr.Keys(), 1)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour}
	e := echo.New()
	e.Use(RateLimit(cfg, rdb, zaptest.NewLogger(t)))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/ping", "").Code)
	}
}

type countingIdentity struct {
	stubIdentity
	calls atomic.Int32
}

func (c *countingIdentity) Validate(ctx context.Context, token string) (string, error) {
	c.calls.Add(1)
	return c.stubIdentity.Validate(ctx, token)
}

func TestProtectThrottlesBadTokensBeforeIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 10, IPCapacity: 3, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, KeyStrategy: "user", Prefix: "rl",
	}
	gw := &countingIdentity{stubIdentity: stubIdentity{"good": "u1"}}
	e := echo.New()
	e.GET("/me", whoami, Protect(gw, cfg, rdb, zaptest.NewLogger(t))...)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "Bearer forged").Code)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/me", "Bearer forged").Code)
	}
	assert.Equal(t, int32(3), gw.calls.Load(), "throttled requests never reach the identity gateway")
	assert.True(t, mr.Exists("rl:preauth:ip:192.0.2.1"))
}

func TestProtectKeepsUserBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, IPCapacity: 50, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, KeyStrategy: "user", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/me", whoami, Protect(stubIdentity{"good": "u1"}, cfg, rdb, zaptest.NewLogger(t))...)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/me", "Bearer good").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/me", "Bearer good").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/me", "Bearer good").Code)
	assert.True(t, mr.Exists("rl:user:u1"))
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.1.2.3:user:anon:route:POST /v1/reservations", rateKey(cfg, c))
	c.Set(UserIDKey, "u7")
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:u7", rateKey(cfg, c))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/bad", func(c echo.Context) error { return c.JSON(http.StatusBadRequest, echo.Map{"error": "x"}) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })

	do(e, http.MethodGet, "/ok", "")
	do(e, http.MethodGet, "/bad", "")
	rec := do(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[2].ContextMap()["status"])
	assert.Equal(t, "/bad", entries[1].ContextMap()["path"])
}

// Package gateway holds the clients of the identity and profile services
// the booking core depends on.  Every client is an owned object built at
// startup; there is no package-level client state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// JWTIdentity validates HS256 access tokens locally.  The user id is the
// token subject.
type JWTIdentity struct {
	secret []byte
}

// NewJWTIdentity returns an identity gateway verifying tokens with secret.
func NewJWTIdentity(secret string) *JWTIdentity {
	return &JWTIdentity{secret: []byte(secret)}
}

// Validate parses token and returns its subject.  Bad signatures, wrong
// algorithms, expired tokens and tokens without a subject all fail with
// model.ErrUnauthorized.
func (j *JWTIdentity) Validate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", model.ErrUnauthorized)
	}
	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		// reject anything but HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %w", model.ErrUnauthorized, errOrInvalid(err))
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", model.ErrUnauthorized)
	}
	sub := subject(claims["sub"])
	if sub == "" {
		return "", fmt.Errorf("%w: token has no subject", model.ErrUnauthorized)
	}
	return sub, nil
}

// subject accepts string subjects and the numeric ids older tokens carry.
func subject(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s > 0 && s == float64(uint64(s)) {
			return strconv.FormatUint(uint64(s), 10)
		}
	}
	return ""
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return errors.New("invalid token")
}

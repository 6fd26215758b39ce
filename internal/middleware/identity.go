package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/service"
)

// UserIDKey is the echo.Context key holding the authenticated user id.
const UserIDKey = "user_id"

// Identity returns an Echo middleware that resolves the Bearer token of
// each request through the identity gateway and stores the user id under
// UserIDKey.  Handlers behind it can rely on UserID being set.
func Identity(gw service.IdentityGateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			userID, err := gw.Validate(c.Request().Context(), strings.TrimSpace(auth[7:]))
			if err != nil {
				if errors.Is(err, model.ErrUpstream) {
					return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity service unavailable"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the id stored by Identity, or "" when the request was
// not authenticated.
func UserID(c echo.Context) string {
	if s, ok := c.Get(UserIDKey).(string); ok {
		return s
	}
	return ""
}

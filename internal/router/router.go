package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/schedule-reservation/internal/handler"
)

// RegisterRoutes mounts the public health check and the authenticated
// /v1 API.  protect runs in order on every /v1 route; middleware that
// reads the user id must come after the identity middleware.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, h *handler.ReservationHandler, protect ...echo.MiddlewareFunc) {
	e.GET("/healthz", health)

	v1 := e.Group("/v1", protect...)

	r := v1.Group("/reservations")
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/today", h.ListToday) // static segment wins over :id
	r.GET("/:id", h.Get)
	r.PATCH("/:id", h.Update)
	r.POST("/:id/use", h.Use)
	r.POST("/:id/cancel", h.Cancel)
	r.PUT("/:id/used", h.SetUsed)

	v1.GET("/schedules/:id/availability", h.Availability)
}

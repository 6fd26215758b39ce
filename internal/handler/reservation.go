package handler

// This file exposes the reservation service over REST.  Every route sits
// behind the identity middleware, so the caller's user id is always
// present in the context.

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/schedule-reservation/internal/middleware"
	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/service"
)

// Reservations is the part of service.ReservationService used by the
// REST handlers.
type Reservations interface {
	Create(ctx context.Context, userID string, req service.CreateRequest) (model.Reservation, error)
	Get(ctx context.Context, userID string, id uint64) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListToday(ctx context.Context, userID string) ([]model.Reservation, error)
	CheckAvailability(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error)
	Use(ctx context.Context, userID string, id uint64) (model.Reservation, error)
	Cancel(ctx context.Context, userID string, id uint64) (model.Reservation, error)
	SetUsed(ctx context.Context, userID string, id uint64, used bool) (model.Reservation, error)
	UpdateCounts(ctx context.Context, userID string, id uint64, adult, child int32) (model.Reservation, error)
}

// ReservationHandler serves the /v1/reservations and /v1/schedules routes.
type ReservationHandler struct {
	svc Reservations
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc Reservations) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

// createResponse is returned by Create for both outcomes.
type createResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
}

// availability is the body of GET /v1/schedules/:id/availability.
type availability struct {
	model.ScheduleOccupancy
	Remaining int64 `json:"remaining"`
}

// Create handles POST /v1/reservations.  An admitted booking answers 201;
// a rejection answers the mapped status with success false.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body service.CreateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, createResponse{Message: "invalid request body"})
	}
	res, err := h.svc.Create(c.Request().Context(), middleware.UserID(c), body)
	if err != nil {
		status := StatusCode(err)
		return c.JSON(status, createResponse{Message: message(err, status)})
	}
	return c.JSON(http.StatusCreated, createResponse{Success: true, Message: "reservation created", ReservationID: res.ID})
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	list, err := h.svc.ListByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, orEmpty(list))
}

// ListToday handles GET /v1/reservations/today.
func (h *ReservationHandler) ListToday(c echo.Context) error {
	list, err := h.svc.ListToday(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, orEmpty(list))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.svc.Get(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PATCH /v1/reservations/:id with new seat counts.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Adult *int32 `json:"adult_count"`
		Child *int32 `json:"child_count"`
	}
	if err := c.Bind(&body); err != nil || body.Adult == nil || body.Child == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "adult_count and child_count are required"})
	}
	res, err := h.svc.UpdateCounts(c.Request().Context(), middleware.UserID(c), id, *body.Adult, *body.Child)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Use handles POST /v1/reservations/:id/use (PENDING to CONFIRMED).
func (h *ReservationHandler) Use(c echo.Context) error {
	return h.change(c, h.svc.Use)
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	return h.change(c, h.svc.Cancel)
}

// SetUsed handles PUT /v1/reservations/:id/used with body {"used": bool}.
func (h *ReservationHandler) SetUsed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Used *bool `json:"used"`
	}
	if err := c.Bind(&body); err != nil || body.Used == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "used is required"})
	}
	res, err := h.svc.SetUsed(c.Request().Context(), middleware.UserID(c), id, *body.Used)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Availability handles GET /v1/schedules/:id/availability.  The figures
// are advisory; admission is decided again at commit time.
func (h *ReservationHandler) Availability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	occ, err := h.svc.CheckAvailability(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, availability{ScheduleOccupancy: occ, Remaining: occ.Remaining()})
}

func (h *ReservationHandler) change(c echo.Context, op func(context.Context, string, uint64) (model.Reservation, error)) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := op(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", model.ErrInvalidRequest, c.Param("id"))
	}
	return id, nil
}

func orEmpty(list []model.Reservation) []model.Reservation {
	if list == nil {
		return []model.Reservation{}
	}
	return list
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// statusTable is checked in order; the first matching sentinel wins.
var statusTable = []struct {
	err    error
	status int
}{
	{model.ErrInvalidRequest, http.StatusBadRequest},
	{model.ErrDuplicateBooking, http.StatusBadRequest},
	{model.ErrLimitExceeded, http.StatusBadRequest},
	{model.ErrCapacityExceeded, http.StatusBadRequest},
	{model.ErrUnauthorized, http.StatusUnauthorized},
	{model.ErrForbidden, http.StatusForbidden},
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrInvalidTransition, http.StatusConflict},
	{model.ErrPersistence, http.StatusInternalServerError},
	{model.ErrUpstream, http.StatusBadGateway},
}

// StatusCode maps a core error to an HTTP status.
func StatusCode(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// message hides storage and unknown failures behind a generic text.
func message(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusBadGateway:
		return "upstream service unavailable"
	}
	return err.Error()
}

func writeError(c echo.Context, err error) error {
	status := StatusCode(err)
	return c.JSON(status, echo.Map{"error": message(err, status)})
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/labstack/echo/v4"
)

func (s *Server) teacherSlots(c echo.Context) error {
	teacherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid teacher id")
	}

	duration := 60
	if raw := c.QueryParam("duration"); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil {
			return badRequest(c, "invalid duration")
		}
	}

	slots, err := s.Availability.Slots(c.Request().Context(), teacherID, c.QueryParam("date"), duration)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (s *Server) setAvailability(c echo.Context) error {
	teacherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid teacher id")
	}
	if teacherID != currentUserID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var availability model.WeeklyAvailability
	if err := c.Bind(&availability); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := s.Users.SetAvailability(c.Request().Context(), teacherID, availability); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

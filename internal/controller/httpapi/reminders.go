package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type deliveryReport struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error"`
}

func (s *Server) dueReminders(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return badRequest(c, "invalid limit")
		}
	}

	events, err := s.Reminders.Due(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) reportDelivery(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid reminder id")
	}

	var report deliveryReport
	if err := c.Bind(&report); err != nil {
		return badRequest(c, "invalid body")
	}

	var deliveryErr error
	if !report.Delivered {
		msg := report.Error
		if msg == "" {
			msg = "delivery failed"
		}
		deliveryErr = errors.New(msg)
	}

	if err := s.Reminders.ReportDelivery(c.Request().Context(), id, deliveryErr); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

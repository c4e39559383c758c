package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type bookingResponse struct {
	*model.Booking
	Status model.BookingStatus `json:"status"`
}

func toResponse(b *model.Booking) bookingResponse {
	return bookingResponse{Booking: b, Status: b.Status()}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Reason    string `json:"reason"`
}

// participantBooking загружает бронирование и сторону текущего пользователя
func (s *Server) participantBooking(c echo.Context) (*model.Booking, model.Party, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, "", &service.Error{Kind: service.ErrValidation, Reason: "invalid booking id"}
	}

	booking, err := s.Bookings.Get(c.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}

	party, ok := booking.PartyOf(currentUserID(c))
	if !ok {
		// Чужие бронирования не раскрываем
		return nil, "", &service.Error{Kind: service.ErrNotFound, Reason: "booking " + id.String() + " not found"}
	}
	return booking, party, nil
}

func (s *Server) listBookings(c echo.Context) error {
	bookings, err := s.Bookings.ListForUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		return s.fail(c, err)
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toResponse(b))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getBooking(c echo.Context) error {
	booking, _, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(booking))
}

func (s *Server) cancelBooking(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	booking, party, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.Bookings.Cancel(c.Request().Context(), service.CancelRequest{
		BookingID:   booking.ID,
		CancelledBy: party,
		UserID:      currentUserID(c),
		Reason:      req.Reason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) completeBooking(c echo.Context) error {
	booking, party, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}

	updated, err := s.Bookings.MarkComplete(c.Request().Context(), service.CompleteRequest{
		BookingID: booking.ID,
		Actor:     party,
		UserID:    currentUserID(c),
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(updated))
}

func (s *Server) proposeReschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	booking, party, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}

	updated, err := s.Reschedules.Propose(c.Request().Context(), service.ProposeRequest{
		BookingID:    booking.ID,
		RequestedBy:  party,
		UserID:       currentUserID(c),
		NewDate:      req.Date,
		NewStartTime: req.StartTime,
		Reason:       req.Reason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(updated))
}

func (s *Server) acceptReschedule(c echo.Context) error {
	booking, _, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}

	updated, err := s.Reschedules.Accept(c.Request().Context(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    currentUserID(c),
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(updated))
}

func (s *Server) rejectReschedule(c echo.Context) error {
	booking, _, err := s.participantBooking(c)
	if err != nil {
		return s.fail(c, err)
	}

	updated, err := s.Reschedules.Reject(c.Request().Context(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    currentUserID(c),
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(updated))
}

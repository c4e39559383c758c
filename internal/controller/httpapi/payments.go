package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// paymentConfirmed приём события оплаты от шлюза. Повтор возвращает то же бронирование.
func (s *Server) paymentConfirmed(c echo.Context) error {
	var event model.PaymentConfirmedEvent
	if err := c.Bind(&event); err != nil {
		return badRequest(c, "invalid body")
	}

	booking, err := s.Bookings.HandlePaymentConfirmed(c.Request().Context(), event)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(booking))
}

func (s *Server) stripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "read body")
	}

	event, ok, err := s.Webhooks.ParseCheckoutCompleted(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return badRequest(c, "invalid webhook")
	}
	if !ok {
		return c.NoContent(http.StatusOK)
	}

	booking, err := s.Bookings.HandlePaymentConfirmed(c.Request().Context(), *event)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"booking_id": booking.ID})
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrValidation):
		// Повтор от Stripe ничего не изменит: возврат помечен или событие некорректно
		s.logger.Warn("Payment not booked",
			zap.String("session_id", event.SessionID),
			zap.String("reason", service.Reason(err)),
		)
		return c.JSON(http.StatusOK, echo.Map{"error": service.Reason(err)})
	default:
		return s.fail(c, err)
	}
}

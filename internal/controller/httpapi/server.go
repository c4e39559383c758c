// Package httpapi HTTP API движка бронирований
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// CheckoutParser проверяет и разбирает вебхук платёжного провайдера
type CheckoutParser interface {
	ParseCheckoutCompleted(payload []byte, signature string) (*model.PaymentConfirmedEvent, bool, error)
}

// Services зависимости сервера
type Services struct {
	Bookings     *service.BookingService
	Reschedules  *service.RescheduleService
	Availability *service.AvailabilityService
	Users        *service.UserService
	Reminders    *service.ReminderService
	Webhooks     CheckoutParser
}

type Server struct {
	echo *echo.Echo
	Services
	logger *zap.Logger
}

func NewServer(services Services, jwtSecret string, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		Services: services,
		logger:   logger,
	}
	s.routes(jwtSecret)
	return s
}

func (s *Server) routes(jwtSecret string) {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if s.Webhooks != nil {
		s.echo.POST("/webhooks/stripe", s.stripeWebhook)
	}

	v1 := s.echo.Group("/v1", JWTAuth(jwtSecret))

	users := v1.Group("", RequireRole(RoleUser))
	users.GET("/teachers/:id/slots", s.teacherSlots)
	users.PUT("/teachers/:id/availability", s.setAvailability)
	users.GET("/bookings", s.listBookings)
	users.GET("/bookings/:id", s.getBooking)
	users.POST("/bookings/:id/cancel", s.cancelBooking)
	users.POST("/bookings/:id/complete", s.completeBooking)
	users.POST("/bookings/:id/reschedule", s.proposeReschedule)
	users.POST("/bookings/:id/reschedule/accept", s.acceptReschedule)
	users.POST("/bookings/:id/reschedule/reject", s.rejectReschedule)

	internal := v1.Group("", RequireRole(RoleService))
	internal.POST("/payments/confirmed", s.paymentConfirmed)
	internal.GET("/reminders/due", s.dueReminders)
	internal.POST("/reminders/:id/delivery", s.reportDelivery)
}

// Handler для httptest и встраивания
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start блокируется до остановки сервера
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

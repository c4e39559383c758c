package handlers

import (
	"github.com/Freeeeeet/lesson_booking/internal/controller/state"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService         *service.UserService
	bookingService      *service.BookingService
	rescheduleService   *service.RescheduleService
	availabilityService *service.AvailabilityService
	stateManager        *state.Manager
	logger              *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	bookingService *service.BookingService,
	rescheduleService *service.RescheduleService,
	availabilityService *service.AvailabilityService,
	stateManager *state.Manager,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:         userService,
		bookingService:      bookingService,
		rescheduleService:   rescheduleService,
		availabilityService: availabilityService,
		stateManager:        stateManager,
		logger:              logger,
	}
}

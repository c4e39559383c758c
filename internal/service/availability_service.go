package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"go.uber.org/zap"
)

// availabilityHorizonDays на сколько дней вперёд показываются слоты
const availabilityHorizonDays = 60

type AvailabilityService struct {
	users    UserStore
	bookings BookingStore
	cache    SlotCache
	logger   *zap.Logger
	now      Clock
}

func NewAvailabilityService(users UserStore, bookings BookingStore, cache SlotCache, logger *zap.Logger, now Clock) *AvailabilityService {
	if cache == nil {
		cache = NopSlotCache{}
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		users:    users,
		bookings: bookings,
		cache:    cache,
		logger:   logger,
		now:      now,
	}
}

// Slots возвращает слоты учителя на дату с пометкой занятых.
// Результат кэшируется; кэш сбрасывается при создании, отмене и переносе бронирований.
func (s *AvailabilityService) Slots(ctx context.Context, teacherID int64, date string, duration int) ([]model.Slot, error) {
	if !ValidDuration(duration) {
		return nil, validationError("duration %d is not one of %v", duration, AllowedDurations)
	}

	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || !teacher.IsTeacher {
		return nil, notFoundError("teacher %d not found", teacherID)
	}

	loc := teacher.Location()
	now := s.now()

	day, err := model.ParseDate(date, loc)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	if day.After(now.AddDate(0, 0, availabilityHorizonDays)) {
		return nil, validationError("date %s is more than %d days ahead", date, availabilityHorizonDays)
	}

	// Поколение читается до выборки бронирований: бронь, сделанная во время
	// генерации, сменит его, и устаревший результат не попадёт в кэш
	cached, gen, ok, err := s.cache.Get(ctx, teacherID, date, duration)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("Slot cache read failed", zap.Int64("teacher_id", teacherID), zap.Error(err))
	}
	if ok {
		return dropPast(cached, day, now, loc), nil
	}

	bookings, err := s.bookings.ListActiveByTeacherDate(ctx, teacherID, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	slots, err := GenerateSlots(teacher.Availability, date, duration, bookedIntervals(bookings), now, loc)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, teacherID, date, duration, gen, slots); err != nil {
			s.logger.Warn("Slot cache write failed", zap.Int64("teacher_id", teacherID), zap.Error(err))
		}
	}

	return slots, nil
}

// dropPast убирает слоты, начало которых прошло с момента кэширования
func dropPast(slots []model.Slot, day, now time.Time, loc *time.Location) []model.Slot {
	result := make([]model.Slot, 0, len(slots))
	for _, slot := range slots {
		instant := time.Date(day.Year(), day.Month(), day.Day(), slot.StartMinute/60, slot.StartMinute%60, 0, 0, loc)
		if instant.After(now) {
			result = append(result, slot)
		}
	}
	return result
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxDeliveryAttempts после стольких неудачных попыток напоминание переходит в failed
const MaxDeliveryAttempts = 3

// ComputeReminders возвращает напоминания за 24ч, 1ч и 15м до начала урока,
// только те, что ещё в будущем относительно now
func ComputeReminders(bookingID uuid.UUID, startsAt, now time.Time) []*model.ReminderEvent {
	var events []*model.ReminderEvent
	for _, t := range model.ReminderTypes {
		at := startsAt.Add(-t.Offset())
		if !at.After(now) {
			continue
		}
		events = append(events, &model.ReminderEvent{
			BookingID:      bookingID,
			Type:           t,
			ScheduledFor:   at,
			DeliveryStatus: model.DeliveryStatusPending,
		})
	}
	return events
}

type ReminderService struct {
	reminders ReminderStore
	bookings  BookingStore
	logger    *zap.Logger
	now       Clock
}

func NewReminderService(reminders ReminderStore, bookings BookingStore, logger *zap.Logger, now Clock) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders: reminders,
		bookings:  bookings,
		logger:    logger,
		now:       now,
	}
}

// Due возвращает напоминания, которые пора отправить
func (s *ReminderService) Due(ctx context.Context, limit int) ([]*model.ReminderEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	events, err := s.reminders.ListDue(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	if events == nil {
		events = []*model.ReminderEvent{}
	}
	return events, nil
}

// ForBooking возвращает все напоминания бронирования
func (s *ReminderService) ForBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.ReminderEvent, error) {
	return s.reminders.ListByBooking(ctx, bookingID)
}

// ReportDelivery принимает результат доставки от отправителя.
// deliveryErr == nil означает успешную доставку. Отчёт по уже закрытому
// напоминанию ничего не меняет, в том числе при одновременных отчётах.
func (s *ReminderService) ReportDelivery(ctx context.Context, id int64, deliveryErr error) error {
	event, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get reminder: %w", err)
	}
	if event == nil {
		return notFoundError("reminder %d not found", id)
	}

	if deliveryErr == nil {
		if _, err := s.reminders.MarkSent(ctx, id, s.now()); err != nil {
			return fmt.Errorf("mark reminder sent: %w", err)
		}
		return nil
	}

	updated, err := s.reminders.MarkAttemptFailed(ctx, id, deliveryErr.Error(), MaxDeliveryAttempts)
	if err != nil {
		return fmt.Errorf("mark reminder failed: %w", err)
	}
	if updated == nil {
		return nil
	}

	s.logger.Warn("Reminder delivery failed",
		zap.Int64("reminder_id", id),
		zap.String("booking_id", updated.BookingID.String()),
		zap.Int("attempt", updated.Attempts),
		zap.Bool("final", updated.DeliveryStatus == model.DeliveryStatusFailed),
		zap.Error(deliveryErr),
	)

	return nil
}

// Dispatch отправляет все просроченные напоминания через sender
func (s *ReminderService) Dispatch(ctx context.Context, sender ReminderSender) (int, error) {
	events, err := s.Due(ctx, 100)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		booking, err := s.bookings.GetByID(ctx, event.BookingID)
		if err != nil {
			s.logger.Error("Failed to load booking for reminder",
				zap.Int64("reminder_id", event.ID),
				zap.Error(err),
			)
			continue
		}

		if booking == nil || !booking.IsActive() {
			// Бронирование отменено после выборки, закрываем с первой попытки
			if _, err := s.reminders.MarkAttemptFailed(ctx, event.ID, "booking is not active", 1); err != nil {
				s.logger.Error("Failed to close stale reminder", zap.Int64("reminder_id", event.ID), zap.Error(err))
			}
			continue
		}

		deliveryErr := sender.SendReminder(ctx, event, booking)
		if err := s.ReportDelivery(ctx, event.ID, deliveryErr); err != nil {
			s.logger.Error("Failed to report reminder delivery",
				zap.Int64("reminder_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		if deliveryErr == nil {
			sent++
		}
	}

	if len(events) > 0 {
		s.logger.Info("Reminders dispatched",
			zap.Int("due", len(events)),
			zap.Int("sent", sent),
		)
	}

	return sent, nil
}

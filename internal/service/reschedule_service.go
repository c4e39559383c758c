package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProposeRequest предложение перенести урок
type ProposeRequest struct {
	BookingID    uuid.UUID
	RequestedBy  model.Party
	UserID       int64
	NewDate      string
	NewStartTime string
	Reason       string
}

// RespondRequest ответ на предложение переноса
type RespondRequest struct {
	BookingID uuid.UUID
	UserID    int64
}

type RescheduleService struct {
	bookings BookingStore
	cache    SlotCache
	logger   *zap.Logger
	now      Clock
}

func NewRescheduleService(bookings BookingStore, cache SlotCache, logger *zap.Logger, now Clock) *RescheduleService {
	if cache == nil {
		cache = NopSlotCache{}
	}
	if now == nil {
		now = time.Now
	}
	return &RescheduleService{
		bookings: bookings,
		cache:    cache,
		logger:   logger,
		now:      now,
	}
}

// Propose прикрепляет к бронированию предложение о переносе.
// Расписание урока не меняется до согласия другой стороны.
// Новое предложение заменяет ещё не принятое.
func (s *RescheduleService) Propose(ctx context.Context, req ProposeRequest) (*model.Booking, error) {
	if !req.RequestedBy.Valid() {
		return nil, validationError("unknown party %q", req.RequestedBy)
	}
	start, err := model.ParseClock(req.NewStartTime)
	if err != nil {
		return nil, validationError("start time: %s", err.Error())
	}
	if _, err := model.ParseDate(req.NewDate, time.UTC); err != nil {
		return nil, validationError("%s", err.Error())
	}

	var updated *model.Booking

	err = s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", req.BookingID)
		}
		if booking.UserOf(req.RequestedBy) != req.UserID {
			return forbiddenError("user %d is not the %s of booking %s", req.UserID, req.RequestedBy, req.BookingID)
		}
		if booking.IsTerminal() {
			return policyError("booking %s is %s", req.BookingID, booking.Status())
		}
		if start+booking.DurationMinutes > model.MinutesPerDay {
			return validationError("lesson starting at %s would run past midnight", req.NewStartTime)
		}

		now := s.now()
		instant, err := model.LessonInstant(req.NewDate, start, booking.Zone())
		if err != nil {
			return validationError("%s", err.Error())
		}
		if !instant.After(now) {
			return policyError("proposed time %s %s is not in the future", req.NewDate, req.NewStartTime)
		}

		booking.Proposal = &model.RescheduleProposal{
			ProposedDate:      req.NewDate,
			ProposedStartTime: model.FormatClock(start),
			RequestedBy:       req.RequestedBy,
			Reason:            req.Reason,
			CreatedAt:         now,
		}
		booking.UpdatedAt = now

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reschedule proposed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("requested_by", string(req.RequestedBy)),
		zap.String("new_date", req.NewDate),
		zap.String("new_start_time", updated.Proposal.ProposedStartTime),
	)

	return updated, nil
}

// Accept применяет предложение о переносе. Принять может только другая сторона.
// Если новый интервал уже занят или прошёл, предложение удаляется,
// урок остаётся на прежнем месте и возвращается ошибка.
func (s *RescheduleService) Accept(ctx context.Context, req RespondRequest) (*model.Booking, error) {
	var (
		updated   *model.Booking
		oldDate   string
		discarded error
	)

	err := s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", req.BookingID)
		}

		proposal := booking.Proposal
		if proposal == nil {
			return policyError("booking %s has no pending reschedule proposal", req.BookingID)
		}

		party, ok := booking.PartyOf(req.UserID)
		if !ok || party != proposal.RequestedBy.Counterparty() {
			return forbiddenError("only the %s can accept this proposal", proposal.RequestedBy.Counterparty())
		}
		if booking.IsTerminal() {
			return policyError("booking %s is %s", req.BookingID, booking.Status())
		}

		now := s.now()
		start, _ := model.ParseClock(proposal.ProposedStartTime)
		end := start + booking.DurationMinutes

		startsAt, err := model.LessonInstant(proposal.ProposedDate, start, booking.Zone())
		if err != nil {
			return fmt.Errorf("resolve proposed instant: %w", err)
		}

		if !startsAt.After(now) {
			discarded = policyError("proposed time %s %s has already passed", proposal.ProposedDate, proposal.ProposedStartTime)
		} else {
			if err := tx.LockTeacherDay(ctx, booking.TeacherID, proposal.ProposedDate); err != nil {
				return fmt.Errorf("lock teacher day: %w", err)
			}

			overlap, err := tx.FindOverlap(ctx, booking.TeacherID, proposal.ProposedDate, start, end, booking.ID)
			if err != nil {
				return fmt.Errorf("find overlap: %w", err)
			}
			if overlap != nil {
				discarded = conflictError("interval %s %s-%s is no longer free",
					proposal.ProposedDate, proposal.ProposedStartTime, model.FormatClock(end))
			}
		}

		booking.Proposal = nil
		booking.UpdatedAt = now

		if discarded != nil {
			if err := tx.Update(ctx, booking); err != nil {
				return fmt.Errorf("discard proposal: %w", err)
			}
			updated = booking
			return nil
		}

		oldDate = booking.Date
		booking.Date = proposal.ProposedDate
		booking.StartTime = model.FormatClock(start)
		booking.EndTime = model.FormatClock(end)
		booking.StartsAt = startsAt
		booking.EndsAt = startsAt.Add(time.Duration(booking.DurationMinutes) * time.Minute)

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		// Напоминания пересчитываются от нового времени
		if _, err := tx.PurgePendingReminders(ctx, booking.ID); err != nil {
			return fmt.Errorf("purge reminders: %w", err)
		}
		if reminders := ComputeReminders(booking.ID, booking.StartsAt, now); len(reminders) > 0 {
			if err := tx.InsertReminders(ctx, reminders); err != nil {
				return fmt.Errorf("insert reminders: %w", err)
			}
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	if discarded != nil {
		s.logger.Warn("Reschedule proposal discarded",
			zap.String("booking_id", updated.ID.String()),
			zap.String("reason", Reason(discarded)),
		)
		return nil, discarded
	}

	s.invalidate(ctx, updated.TeacherID, oldDate)
	if oldDate != updated.Date {
		s.invalidate(ctx, updated.TeacherID, updated.Date)
	}

	s.logger.Info("Booking rescheduled",
		zap.String("booking_id", updated.ID.String()),
		zap.String("old_date", oldDate),
		zap.String("date", updated.Date),
		zap.String("start_time", updated.StartTime),
	)

	return updated, nil
}

// Reject отклоняет предложение. Отправитель тоже может его отозвать.
func (s *RescheduleService) Reject(ctx context.Context, req RespondRequest) (*model.Booking, error) {
	var updated *model.Booking

	err := s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", req.BookingID)
		}
		if _, ok := booking.PartyOf(req.UserID); !ok {
			return forbiddenError("user %d is not a participant of booking %s", req.UserID, req.BookingID)
		}
		if booking.Proposal == nil {
			return policyError("booking %s has no pending reschedule proposal", req.BookingID)
		}

		booking.Proposal = nil
		booking.UpdatedAt = s.now()

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reschedule proposal rejected",
		zap.String("booking_id", updated.ID.String()),
		zap.Int64("user_id", req.UserID),
	)

	return updated, nil
}

func (s *RescheduleService) invalidate(ctx context.Context, teacherID int64, date string) {
	if err := s.cache.Invalidate(ctx, teacherID, date); err != nil {
		s.logger.Warn("Failed to invalidate slot cache",
			zap.Int64("teacher_id", teacherID),
			zap.String("date", date),
			zap.Error(err),
		)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompleteRequest отметка о проведённом уроке от одной из сторон
type CompleteRequest struct {
	BookingID uuid.UUID
	Actor     model.Party
	UserID    int64
}

// CancelRequest отмена бронирования одной из сторон
type CancelRequest struct {
	BookingID   uuid.UUID
	CancelledBy model.Party
	UserID      int64
	Reason      string
}

type CancelResult struct {
	RefundPercent int   `json:"refund_percent"`
	RefundAmount  int64 `json:"refund_amount"`
}

type BookingService struct {
	bookings  BookingStore
	users     UserStore
	escrow    *EscrowService
	cache     SlotCache
	publisher EventPublisher
	logger    *zap.Logger
	now       Clock

	asyncSettlement bool
	settlements     sync.WaitGroup
}

func NewBookingService(
	bookings BookingStore,
	users UserStore,
	escrow *EscrowService,
	cache SlotCache,
	publisher EventPublisher,
	logger *zap.Logger,
	now Clock,
) *BookingService {
	if cache == nil {
		cache = NopSlotCache{}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:  bookings,
		users:     users,
		escrow:    escrow,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       now,
	}
}

// EnableAsyncSettlement выполняет выплату в фоне, не задерживая ответ на отметку о завершении
func (s *BookingService) EnableAsyncSettlement() {
	s.asyncSettlement = true
}

// WaitSettlements ждёт фоновые выплаты. Вызывается при остановке.
// Выплата, не начавшаяся до остановки, будет добрана сверкой EscrowService.RetryFailed.
func (s *BookingService) WaitSettlements() {
	s.settlements.Wait()
}

// HandlePaymentConfirmed создаёт бронирование по событию об оплате.
// Повторная доставка того же события возвращает уже созданное бронирование.
// Если интервал успел занять кто-то другой, бронирование не создаётся,
// платёж помечается на возврат и возвращается ErrConflict.
func (s *BookingService) HandlePaymentConfirmed(ctx context.Context, event model.PaymentConfirmedEvent) (*model.Booking, error) {
	if err := validatePaymentEvent(event); err != nil {
		return nil, err
	}

	teacher, err := s.users.GetByID(ctx, event.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || !teacher.IsTeacher {
		return nil, validationError("teacher %d not found", event.TeacherID)
	}

	loc := teacher.Location()
	start, _ := model.ParseClock(event.StartTime)
	end := start + event.DurationMinutes

	startsAt, err := model.LessonInstant(event.Date, start, loc)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	var discount int64
	if event.Discount != nil {
		discount = *event.Discount
	}

	now := s.now()
	booking := &model.Booking{
		ID:               uuid.New(),
		PaymentSessionID: event.SessionID,
		TeacherID:        event.TeacherID,
		StudentID:        event.StudentID,
		Date:             event.Date,
		StartTime:        model.FormatClock(start),
		EndTime:          model.FormatClock(end),
		DurationMinutes:  event.DurationMinutes,
		Timezone:         loc.String(),
		StartsAt:         startsAt,
		EndsAt:           startsAt.Add(time.Duration(event.DurationMinutes) * time.Minute),
		Location:         event.Location,
		AmountPaid:       event.Price - discount,
		Discount:         discount,
		Currency:         event.Currency,
		PaymentHeld:      true,
		TransferStatus:   model.TransferStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var (
		result      *model.Booking
		compensated bool
		conflicted  bool
		refund      *model.CompensationRefund
	)

	err = s.bookings.Atomically(ctx, func(tx BookingTx) error {
		// Все проверки и вставка под блокировкой дня учителя
		if err := tx.LockTeacherDay(ctx, event.TeacherID, event.Date); err != nil {
			return fmt.Errorf("lock teacher day: %w", err)
		}

		existing, err := tx.GetByPaymentSession(ctx, event.SessionID)
		if err != nil {
			return fmt.Errorf("get booking by session: %w", err)
		}
		if existing != nil {
			result = existing
			return nil
		}

		overlap, err := tx.FindOverlap(ctx, event.TeacherID, event.Date, start, end, uuid.Nil)
		if err != nil {
			return fmt.Errorf("find overlap: %w", err)
		}
		if overlap != nil {
			conflicted = true
			refund = &model.CompensationRefund{
				SessionID: event.SessionID,
				TeacherID: event.TeacherID,
				StudentID: event.StudentID,
				Amount:    booking.AmountPaid,
				Currency:  event.Currency,
				Reason:    fmt.Sprintf("slot %s %s-%s already booked", event.Date, booking.StartTime, booking.EndTime),
				CreatedAt: now,
			}
			// Возврат фиксируется в той же транзакции, ошибку вызывающему вернём после коммита
			compensated, err = tx.FlagCompensation(ctx, refund)
			if err != nil {
				return fmt.Errorf("flag compensation: %w", err)
			}
			return nil
		}

		if err := tx.Insert(ctx, booking); err != nil {
			if errors.Is(err, ErrDuplicateSession) {
				// Та же сессия пришла параллельно с другими датой или учителем
				return validationError("payment session %s is already used by another booking", event.SessionID)
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if reminders := ComputeReminders(booking.ID, booking.StartsAt, now); len(reminders) > 0 {
			if err := tx.InsertReminders(ctx, reminders); err != nil {
				return fmt.Errorf("insert reminders: %w", err)
			}
		}

		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	if conflicted {
		s.logger.Warn("Paid slot already taken, refund flagged",
			zap.String("session_id", event.SessionID),
			zap.Int64("teacher_id", event.TeacherID),
			zap.String("date", event.Date),
			zap.String("start_time", booking.StartTime),
			zap.Bool("first_delivery", compensated),
		)
		if compensated {
			if err := s.publisher.PublishRefundRequested(ctx, *refund); err != nil {
				s.logger.Error("Failed to publish refund request", zap.String("session_id", event.SessionID), zap.Error(err))
			}
		}
		return nil, conflictError("interval %s %s-%s is no longer free", event.Date, booking.StartTime, booking.EndTime)
	}

	if result != booking {
		s.logger.Debug("Payment event replayed",
			zap.String("session_id", event.SessionID),
			zap.String("booking_id", result.ID.String()),
		)
		return result, nil
	}

	s.invalidate(ctx, booking.TeacherID, booking.Date)

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("session_id", event.SessionID),
		zap.Int64("teacher_id", booking.TeacherID),
		zap.Int64("student_id", booking.StudentID),
		zap.String("date", booking.Date),
		zap.String("start_time", booking.StartTime),
		zap.Int64("amount_paid", booking.AmountPaid),
	)

	return booking, nil
}

func validatePaymentEvent(event model.PaymentConfirmedEvent) error {
	if event.SessionID == "" {
		return validationError("payment session id is required")
	}
	if event.TeacherID <= 0 || event.StudentID <= 0 {
		return validationError("teacher and student are required")
	}
	if event.TeacherID == event.StudentID {
		return validationError("teacher cannot book a lesson with themselves")
	}
	if _, err := model.ParseDate(event.Date, time.UTC); err != nil {
		return validationError("%s", err.Error())
	}
	if !ValidDuration(event.DurationMinutes) {
		return validationError("duration %d is not one of %v", event.DurationMinutes, AllowedDurations)
	}

	start, err := model.ParseClock(event.StartTime)
	if err != nil {
		return validationError("start time: %s", err.Error())
	}
	end, err := model.ParseClock(event.EndTime)
	if err != nil {
		return validationError("end time: %s", err.Error())
	}
	if end == 0 {
		end = model.MinutesPerDay
	}
	if end-start != event.DurationMinutes {
		return validationError("%s-%s does not match duration %d", event.StartTime, event.EndTime, event.DurationMinutes)
	}

	if event.Location == "" {
		return validationError("location is required")
	}
	if event.Price < 0 {
		return validationError("price cannot be negative")
	}
	if event.Discount != nil && (*event.Discount < 0 || *event.Discount > event.Price) {
		return validationError("discount must be between 0 and price")
	}
	return nil
}

// MarkComplete ставит отметку о проведённом уроке от стороны Actor.
// Когда отмечены обе стороны, выплата учителю запускается ровно один раз.
func (s *BookingService) MarkComplete(ctx context.Context, req CompleteRequest) (*model.Booking, error) {
	if !req.Actor.Valid() {
		return nil, validationError("unknown party %q", req.Actor)
	}

	var (
		updated  *model.Booking
		approved bool
	)

	err := s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", req.BookingID)
		}
		if booking.UserOf(req.Actor) != req.UserID {
			return forbiddenError("user %d is not the %s of booking %s", req.UserID, req.Actor, req.BookingID)
		}
		if booking.Status() == model.BookingStatusCancelled {
			return policyError("booking %s is cancelled", req.BookingID)
		}

		now := s.now()
		switch req.Actor {
		case model.PartyTeacher:
			if booking.TeacherApproved {
				updated = booking
				return nil
			}
			if now.Before(booking.EndsAt) {
				return policyError("lesson ends at %s, teacher can confirm only after it", booking.EndsAt.Format(time.RFC3339))
			}
			booking.TeacherApproved = true
			booking.TeacherApprovedAt = &now
		case model.PartyStudent:
			if booking.StudentConfirmed {
				updated = booking
				return nil
			}
			booking.StudentConfirmed = true
			booking.StudentConfirmedAt = &now
		}
		booking.UpdatedAt = now

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		approved = booking.Status() == model.BookingStatusApproved
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson completion marked",
		zap.String("booking_id", updated.ID.String()),
		zap.String("actor", string(req.Actor)),
		zap.String("status", string(updated.Status())),
	)

	if approved {
		s.onApproved(ctx, updated)
	}

	return updated, nil
}

// onApproved вызывается только из транзакции, которая перевела бронирование в approved
func (s *BookingService) onApproved(ctx context.Context, booking *model.Booking) {
	event := model.BookingApprovedEvent{
		BookingID:  booking.ID,
		TeacherID:  booking.TeacherID,
		StudentID:  booking.StudentID,
		AmountPaid: booking.AmountPaid,
		ApprovedAt: booking.UpdatedAt,
	}
	if err := s.publisher.PublishBookingApproved(ctx, event); err != nil {
		s.logger.Error("Failed to publish approval", zap.String("booking_id", booking.ID.String()), zap.Error(err))
	}

	if s.escrow == nil {
		return
	}

	release := func(ctx context.Context) {
		// Ошибку выплаты или захвата добирает сверка RetryFailed
		if err := s.escrow.Release(ctx, booking.ID); err != nil {
			s.logger.Warn("Settlement deferred", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		}
	}

	if s.asyncSettlement {
		s.settlements.Add(1)
		go func() {
			defer s.settlements.Done()
			release(context.WithoutCancel(ctx))
		}()
		return
	}
	release(ctx)
}

// Cancel отменяет бронирование до подтверждения урока обеими сторонами.
// Нулевой возврат не ошибка: отмена проходит в любом случае.
func (s *BookingService) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if !req.CancelledBy.Valid() {
		return nil, validationError("unknown party %q", req.CancelledBy)
	}

	var (
		cancelled *model.Booking
		purged    int64
	)

	err := s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", req.BookingID)
		}
		if booking.UserOf(req.CancelledBy) != req.UserID {
			return forbiddenError("user %d is not the %s of booking %s", req.UserID, req.CancelledBy, req.BookingID)
		}

		switch booking.Status() {
		case model.BookingStatusApproved:
			return policyError("booking %s is already approved by both parties", req.BookingID)
		case model.BookingStatusCancelled:
			return policyError("booking %s is already cancelled", req.BookingID)
		}

		now := s.now()
		var quote CancellationQuote
		if req.CancelledBy == model.PartyTeacher {
			quote = TeacherCancellation(booking.AmountPaid)
		} else {
			quote = StudentCancellation(booking.AmountPaid, HoursUntil(booking.StartsAt, now))
		}

		booking.CancelledAt = &now
		booking.CancelledBy = req.CancelledBy
		booking.CancelReason = req.Reason
		booking.RefundPercent = quote.RefundPercent
		booking.RefundAmount = quote.RefundAmount
		booking.TeacherCompensation = quote.TeacherCompensation
		booking.PaymentHeld = false
		booking.Proposal = nil
		booking.UpdatedAt = now

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		purged, err = tx.PurgePendingReminders(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("purge reminders: %w", err)
		}

		cancelled = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cancelled.TeacherID, cancelled.Date)

	event := model.BookingCancelledEvent{
		BookingID:        cancelled.ID,
		PaymentSessionID: cancelled.PaymentSessionID,
		CancelledBy:      cancelled.CancelledBy,
		RefundPercent:    cancelled.RefundPercent,
		RefundAmount:     cancelled.RefundAmount,
		Currency:         cancelled.Currency,
		CancelledAt:      *cancelled.CancelledAt,
	}
	if err := s.publisher.PublishBookingCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish cancellation", zap.String("booking_id", cancelled.ID.String()), zap.Error(err))
	}

	s.logger.Info("Booking cancelled",
		zap.String("booking_id", cancelled.ID.String()),
		zap.String("cancelled_by", string(cancelled.CancelledBy)),
		zap.Int("refund_percent", cancelled.RefundPercent),
		zap.Int64("refund_amount", cancelled.RefundAmount),
		zap.Int64("reminders_purged", purged),
	)

	return &CancelResult{
		RefundPercent: cancelled.RefundPercent,
		RefundAmount:  cancelled.RefundAmount,
	}, nil
}

// Get возвращает бронирование или ErrNotFound
func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, notFoundError("booking %s not found", id)
	}
	return booking, nil
}

// ListForUser бронирования, где пользователь учитель или студент
func (s *BookingService) ListForUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) invalidate(ctx context.Context, teacherID int64, date string) {
	if err := s.cache.Invalidate(ctx, teacherID, date); err != nil {
		s.logger.Warn("Failed to invalidate slot cache",
			zap.Int64("teacher_id", teacherID),
			zap.String("date", date),
			zap.Error(err),
		)
	}
}

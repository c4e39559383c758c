package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TeacherSharePercent доля учителя при выплате, остальное остаётся платформе
const TeacherSharePercent = 80

// SplitPayout делит сумму на долю учителя и комиссию платформы.
// Сумма частей всегда равна исходной.
func SplitPayout(amount int64) (teacherShare, platformFee int64) {
	if amount <= 0 {
		return 0, 0
	}
	teacherShare = (amount*TeacherSharePercent + 50) / 100
	return teacherShare, amount - teacherShare
}

// ProcessingStaleAfter захват выплаты старше этого считается брошенным (процесс упал
// между захватом и записью результата) и забирается сверкой повторно
const ProcessingStaleAfter = 15 * time.Minute

// PayoutIdempotencyKey ключ идемпотентности перевода у платёжного провайдера
func PayoutIdempotencyKey(bookingID uuid.UUID) string {
	return "booking-payout-" + bookingID.String()
}

type EscrowService struct {
	bookings BookingStore
	users    UserStore
	payouter Payouter
	currency string
	logger   *zap.Logger
	now      Clock
}

func NewEscrowService(
	bookings BookingStore,
	users UserStore,
	payouter Payouter,
	currency string,
	logger *zap.Logger,
	now Clock,
) *EscrowService {
	if now == nil {
		now = time.Now
	}
	return &EscrowService{
		bookings: bookings,
		users:    users,
		payouter: payouter,
		currency: currency,
		logger:   logger,
		now:      now,
	}
}

// Release выплачивает долю учителя по подтверждённому уроку.
// Повторный вызов после успешной выплаты или во время выплаты ничего не делает.
// Ошибка перевода фиксируется как transfer_status=failed и возвращается как ErrSettlement,
// статус бронирования при этом остаётся approved.
func (s *EscrowService) Release(ctx context.Context, bookingID uuid.UUID) error {
	return s.release(ctx, bookingID, time.Time{})
}

// release с ненулевым reclaimBefore перезахватывает выплату в processing,
// если захват сделан раньше reclaimBefore
func (s *EscrowService) release(ctx context.Context, bookingID uuid.UUID, reclaimBefore time.Time) error {
	var claimed *model.Booking

	err := s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", bookingID)
		}

		if booking.Status() != model.BookingStatusApproved {
			return policyError("booking %s is %s, payout requires both confirmations", bookingID, booking.Status())
		}

		switch booking.TransferStatus {
		case model.TransferStatusCompleted:
			return nil
		case model.TransferStatusProcessing:
			if reclaimBefore.IsZero() || !booking.UpdatedAt.Before(reclaimBefore) {
				return nil
			}
			s.logger.Warn("Reclaiming stale payout",
				zap.String("booking_id", bookingID.String()),
				zap.Time("claimed_at", booking.UpdatedAt),
			)
		}

		teacherShare, platformFee := SplitPayout(booking.AmountPaid)
		booking.TransferStatus = model.TransferStatusProcessing
		booking.TeacherPayout = teacherShare
		booking.PlatformFee = platformFee
		booking.UpdatedAt = s.now()

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("claim payout: %w", err)
		}

		claimed = booking
		return nil
	})
	if err != nil {
		return err
	}

	if claimed == nil {
		s.logger.Debug("Payout already handled", zap.String("booking_id", bookingID.String()))
		return nil
	}

	transferID, payErr := s.transfer(ctx, claimed)
	if err := s.finish(ctx, bookingID, transferID, payErr); err != nil {
		return err
	}

	if payErr != nil {
		s.logger.Error("Payout failed",
			zap.String("booking_id", bookingID.String()),
			zap.Int64("teacher_id", claimed.TeacherID),
			zap.Int64("amount", claimed.TeacherPayout),
			zap.Error(payErr),
		)
		return &Error{Kind: ErrSettlement, Reason: payErr.Error()}
	}

	s.logger.Info("Payout completed",
		zap.String("booking_id", bookingID.String()),
		zap.Int64("teacher_id", claimed.TeacherID),
		zap.Int64("teacher_payout", claimed.TeacherPayout),
		zap.Int64("platform_fee", claimed.PlatformFee),
		zap.String("transfer_id", transferID),
	)

	return nil
}

func (s *EscrowService) transfer(ctx context.Context, booking *model.Booking) (string, error) {
	teacher, err := s.users.GetByID(ctx, booking.TeacherID)
	if err != nil {
		return "", fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || teacher.PayoutAccountID == "" {
		return "", fmt.Errorf("teacher %d has no payout account", booking.TeacherID)
	}

	currency := booking.Currency
	if currency == "" {
		currency = s.currency
	}

	return s.payouter.Transfer(ctx, model.PayoutRequest{
		BookingID:      booking.ID,
		Destination:    teacher.PayoutAccountID,
		Amount:         booking.TeacherPayout,
		Currency:       currency,
		IdempotencyKey: PayoutIdempotencyKey(booking.ID),
	})
}

// finish записывает результат перевода
func (s *EscrowService) finish(ctx context.Context, bookingID uuid.UUID, transferID string, payErr error) error {
	return s.bookings.Atomically(ctx, func(tx BookingTx) error {
		booking, err := tx.GetForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return notFoundError("booking %s not found", bookingID)
		}

		if payErr != nil {
			booking.TransferStatus = model.TransferStatusFailed
		} else {
			booking.TransferStatus = model.TransferStatusCompleted
			booking.TransferID = transferID
			booking.PaymentHeld = false
		}
		booking.UpdatedAt = s.now()

		if err := tx.Update(ctx, booking); err != nil {
			return fmt.Errorf("record payout result: %w", err)
		}
		return nil
	})
}

// RetryFailed сверка выплат по одобренным урокам: повторяет failed, добирает pending,
// которые не дошли до выплаты после одобрения, и перезахватывает зависшие processing.
// Повторный перевод безопасен благодаря ключу идемпотентности. Возвращает число успешных.
func (s *EscrowService) RetryFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	staleBefore := s.now().Add(-ProcessingStaleAfter)

	unsettled, err := s.bookings.ListUnsettled(ctx, staleBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsettled payouts: %w", err)
	}

	released := 0
	for _, booking := range unsettled {
		if err := s.release(ctx, booking.ID, staleBefore); err != nil {
			continue
		}
		released++
	}

	if len(unsettled) > 0 {
		s.logger.Info("Unsettled payouts retried",
			zap.Int("unsettled", len(unsettled)),
			zap.Int("released", released),
		)
	}

	return released, nil
}

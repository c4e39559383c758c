package memory

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
)

// tx работает с копией состояния под мьютексом хранилища
type tx struct {
	state *state
}

var _ service.BookingTx = (*tx)(nil)

// LockTeacherDay ничего не делает: вся транзакция уже под мьютексом
func (t *tx) LockTeacherDay(ctx context.Context, teacherID int64, date string) error {
	return nil
}

func (t *tx) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	if b, ok := t.state.bookings[id]; ok {
		return b.Clone(), nil
	}
	return nil, nil
}

func (t *tx) GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	for _, b := range t.state.bookings {
		if b.PaymentSessionID == sessionID {
			return b.Clone(), nil
		}
	}
	return nil, nil
}

func (t *tx) FindOverlap(ctx context.Context, teacherID int64, date string, start, end int, exclude uuid.UUID) (*model.Booking, error) {
	for _, b := range filterBookings(t.state, func(b *model.Booking) bool {
		return b.TeacherID == teacherID && b.Date == date && b.IsActive() && b.ID != exclude
	}) {
		bStart, bEnd := b.Interval()
		if service.Overlaps(start, end, bStart, bEnd) {
			return b, nil
		}
	}
	return nil, nil
}

func (t *tx) Insert(ctx context.Context, booking *model.Booking) error {
	if _, ok := t.state.bookings[booking.ID]; ok {
		return fmt.Errorf("booking %s already exists", booking.ID)
	}
	for _, b := range t.state.bookings {
		if b.PaymentSessionID == booking.PaymentSessionID {
			return fmt.Errorf("session %s: %w", booking.PaymentSessionID, service.ErrDuplicateSession)
		}
	}
	t.state.bookings[booking.ID] = booking.Clone()
	return nil
}

func (t *tx) Update(ctx context.Context, booking *model.Booking) error {
	if _, ok := t.state.bookings[booking.ID]; !ok {
		return fmt.Errorf("booking %s not found", booking.ID)
	}
	t.state.bookings[booking.ID] = booking.Clone()
	return nil
}

func (t *tx) InsertReminders(ctx context.Context, events []*model.ReminderEvent) error {
	for _, e := range events {
		t.state.nextReminderID++
		e.ID = t.state.nextReminderID
		t.state.reminders[e.ID] = cloneReminder(e)
	}
	return nil
}

func (t *tx) PurgePendingReminders(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var purged int64
	for id, r := range t.state.reminders {
		if r.BookingID == bookingID && r.DeliveryStatus == model.DeliveryStatusPending {
			delete(t.state.reminders, id)
			purged++
		}
	}
	return purged, nil
}

func (t *tx) FlagCompensation(ctx context.Context, refund *model.CompensationRefund) (bool, error) {
	if _, ok := t.state.refunds[refund.SessionID]; ok {
		return false, nil
	}
	t.state.nextRefundID++
	refund.ID = t.state.nextRefundID
	v := *refund
	t.state.refunds[refund.SessionID] = &v
	return true, nil
}

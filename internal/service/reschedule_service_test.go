package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) propose(booking *model.Booking, by model.Party, date, start string) (*model.Booking, error) {
	userID := f.student.ID
	if by == model.PartyTeacher {
		userID = f.teacher.ID
	}
	return f.reschedules.Propose(context.Background(), service.ProposeRequest{
		BookingID:    booking.ID,
		RequestedBy:  by,
		UserID:       userID,
		NewDate:      date,
		NewStartTime: start,
		Reason:       "conflict at work",
	})
}

func TestPropose_PastTimeRejected(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-01", "09:00")
	require.Error(t, err)
	assert.True(t, isKind(err, service.ErrPolicy))

	stored, err := f.bookings.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Proposal)
	assert.Equal(t, booking.Date, stored.Date)
	assert.Equal(t, booking.StartTime, stored.StartTime)
}

func TestPropose_ReplacesPendingProposal(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)
	updated, err := f.propose(booking, model.PartyTeacher, "2026-03-03", "16:00")
	require.NoError(t, err)

	require.NotNil(t, updated.Proposal)
	assert.Equal(t, "16:00", updated.Proposal.ProposedStartTime)
	assert.Equal(t, model.PartyTeacher, updated.Proposal.RequestedBy)
	// Расписание урока до принятия не меняется
	assert.Equal(t, lessonDate, updated.Date)
	assert.Equal(t, "10:00", updated.StartTime)
}

func TestPropose_Validation(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "23:30")
	assert.True(t, isKind(err, service.ErrValidation), "must not run past midnight")

	_, err = f.propose(booking, model.PartyStudent, "03.03.2026", "10:00")
	assert.True(t, isKind(err, service.ErrValidation))

	_, err = f.propose(booking, model.PartyStudent, "2026-03-03", "10")
	assert.True(t, isKind(err, service.ErrValidation))

	_, err = f.reschedules.Propose(context.Background(), service.ProposeRequest{
		BookingID:    booking.ID,
		RequestedBy:  model.PartyTeacher,
		UserID:       f.student.ID,
		NewDate:      "2026-03-03",
		NewStartTime: "10:00",
	})
	assert.True(t, isKind(err, service.ErrForbidden))
}

func TestPropose_CancelledBooking(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.bookings.Cancel(context.Background(), service.CancelRequest{
		BookingID:   booking.ID,
		CancelledBy: model.PartyTeacher,
		UserID:      f.teacher.ID,
	})
	require.NoError(t, err)

	_, err = f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	assert.True(t, isKind(err, service.ErrPolicy))
}

func TestAccept_MovesBooking(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)

	moved, err := f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    f.teacher.ID,
	})
	require.NoError(t, err)

	assert.Nil(t, moved.Proposal)
	assert.Equal(t, "2026-03-03", moved.Date)
	assert.Equal(t, "15:00", moved.StartTime)
	assert.Equal(t, "16:00", moved.EndTime)
	assert.Equal(t, time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC), moved.StartsAt)
	assert.Equal(t, time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC), moved.EndsAt)

	// Напоминания пересчитаны от нового времени: все три в будущем
	reminders := f.pendingReminders(t, booking.ID)
	require.Len(t, reminders, 3)
	assert.Equal(t, moved.StartsAt.Add(-24*time.Hour), reminders[0].ScheduledFor)

	invalidated := f.cache.Invalidated()
	assert.Contains(t, invalidated, fmt.Sprintf("%d:%s", f.teacher.ID, lessonDate))
	assert.Contains(t, invalidated, fmt.Sprintf("%d:%s", f.teacher.ID, "2026-03-03"))

	// Старый интервал освободился
	f.book(t, "cs_2")
}

func TestAccept_OnlyCounterparty(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)

	_, err = f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    f.student.ID,
	})
	assert.True(t, isKind(err, service.ErrForbidden))

	_, err = f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    999,
	})
	assert.True(t, isKind(err, service.ErrForbidden))
}

func TestAccept_ConflictDiscardsProposal(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyTeacher, "2026-03-03", "15:00")
	require.NoError(t, err)

	// Пока ждали ответа, интервал занял другой студент
	other := f.paymentEvent("cs_other")
	other.Date = "2026-03-03"
	other.StartTime = "15:30"
	other.EndTime = "16:00"
	other.DurationMinutes = 30
	_, err = f.bookings.HandlePaymentConfirmed(context.Background(), other)
	require.NoError(t, err)

	_, err = f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    f.student.ID,
	})
	require.Error(t, err)
	assert.True(t, isKind(err, service.ErrConflict))

	stored, err := f.bookings.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Proposal)
	assert.Equal(t, lessonDate, stored.Date)
	assert.Equal(t, "10:00", stored.StartTime)
}

func TestAccept_SameDayShiftOverlappingItself(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	// 10:30 пересекается только с самим бронированием
	_, err := f.propose(booking, model.PartyStudent, lessonDate, "10:30")
	require.NoError(t, err)

	moved, err := f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    f.teacher.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.StartTime)
	assert.Equal(t, "11:30", moved.EndTime)
}

func TestAccept_ProposalExpired(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 3, 3, 15, 5, 0, 0, time.UTC))
	_, err = f.reschedules.Accept(context.Background(), service.RespondRequest{
		BookingID: booking.ID,
		UserID:    f.teacher.ID,
	})
	assert.True(t, isKind(err, service.ErrPolicy))

	stored, err := f.bookings.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Proposal)
	assert.Equal(t, lessonDate, stored.Date)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.reschedules.Reject(context.Background(), service.RespondRequest{BookingID: booking.ID, UserID: f.teacher.ID})
	assert.True(t, isKind(err, service.ErrPolicy), "nothing to reject")

	_, err = f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)

	_, err = f.reschedules.Reject(context.Background(), service.RespondRequest{BookingID: booking.ID, UserID: 999})
	assert.True(t, isKind(err, service.ErrForbidden))

	// Отправитель может отозвать своё предложение
	rejected, err := f.reschedules.Reject(context.Background(), service.RespondRequest{BookingID: booking.ID, UserID: f.student.ID})
	require.NoError(t, err)
	assert.Nil(t, rejected.Proposal)
	assert.Equal(t, "10:00", rejected.StartTime)
}

func TestCancel_DropsPendingProposal(t *testing.T) {
	f := newFixture(t)
	booking := f.book(t, "cs_1")

	_, err := f.propose(booking, model.PartyStudent, "2026-03-03", "15:00")
	require.NoError(t, err)

	_, err = f.bookings.Cancel(context.Background(), service.CancelRequest{
		BookingID:   booking.ID,
		CancelledBy: model.PartyStudent,
		UserID:      f.student.ID,
	})
	require.NoError(t, err)

	stored, err := f.bookings.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Proposal)

	_, err = f.reschedules.Accept(context.Background(), service.RespondRequest{BookingID: booking.ID, UserID: f.teacher.ID})
	assert.True(t, isKind(err, service.ErrPolicy))
}

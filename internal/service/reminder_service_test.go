package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []uuid.UUID
	fail error
}

func (s *fakeSender) SendReminder(ctx context.Context, event *model.ReminderEvent, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, booking.ID)
	return nil
}

func TestDispatch_SendsDueReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t, "cs_1")

	sender := &fakeSender{}

	sent, err := f.reminders.Dispatch(ctx, sender)
	require.NoError(t, err)
	assert.Zero(t, sent, "nothing due yet")

	// 1h и 15m уже наступили
	f.clock.Set(booking.StartsAt.Add(-10 * time.Minute))
	sent, err = f.reminders.Dispatch(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Empty(t, f.pendingReminders(t, booking.ID))

	sent, err = f.reminders.Dispatch(ctx, sender)
	require.NoError(t, err)
	assert.Zero(t, sent, "sent reminders are not repeated")
}

func TestDispatch_RetriesThenGivesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t, "cs_1")

	f.clock.Set(booking.StartsAt.Add(-30 * time.Minute))
	sender := &fakeSender{fail: errors.New("chat not found")}

	for i := 0; i < service.MaxDeliveryAttempts; i++ {
		_, err := f.reminders.Dispatch(ctx, sender)
		require.NoError(t, err)
	}

	events, err := f.reminders.ForBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	hourBefore := events[0]
	assert.Equal(t, model.Reminder1h, hourBefore.Type)
	assert.Equal(t, model.DeliveryStatusFailed, hourBefore.DeliveryStatus)
	assert.Equal(t, service.MaxDeliveryAttempts, hourBefore.Attempts)
	assert.Equal(t, "chat not found", hourBefore.LastError)

	// 15m ещё не наступило
	assert.Equal(t, model.DeliveryStatusPending, events[1].DeliveryStatus)
}

func TestReportDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t, "cs_1")

	f.clock.Set(booking.StartsAt.Add(-30 * time.Minute))
	due, err := f.reminders.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, f.reminders.ReportDelivery(ctx, due[0].ID, errors.New("timeout")))
	require.NoError(t, f.reminders.ReportDelivery(ctx, due[0].ID, nil))
	// Повторный отчёт по закрытому напоминанию игнорируется
	require.NoError(t, f.reminders.ReportDelivery(ctx, due[0].ID, errors.New("late failure")))

	events, err := f.reminders.ForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, events[0].DeliveryStatus)
	assert.Equal(t, 2, events[0].Attempts)
	require.NotNil(t, events[0].SentAt)

	err = f.reminders.ReportDelivery(ctx, 999, nil)
	assert.True(t, isKind(err, service.ErrNotFound))
}

func TestReportDelivery_ConcurrentFailuresStopAtLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t, "cs_1")

	f.clock.Set(booking.StartsAt.Add(-30 * time.Minute))
	due, err := f.reminders.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Отчёты от нескольких отправителей приходят одновременно
	const reports = 8
	var wg sync.WaitGroup
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.reminders.ReportDelivery(ctx, due[0].ID, errors.New("timeout")))
		}()
	}
	wg.Wait()

	events, err := f.reminders.ForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusFailed, events[0].DeliveryStatus)
	assert.Equal(t, service.MaxDeliveryAttempts, events[0].Attempts)

	require.NoError(t, f.reminders.ReportDelivery(ctx, due[0].ID, nil))
	events, err = f.reminders.ForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusFailed, events[0].DeliveryStatus)
	assert.Nil(t, events[0].SentAt)
}

func TestDue_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)

	due, err := f.reminders.Due(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, due)
	assert.Empty(t, due)
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/memory"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Воскресенье, полдень UTC. Урок по умолчанию в понедельник 10:00, через 22 часа.
var baseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	lessonDate  = "2026-03-02"
	lessonPrice = int64(4000)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakePayouter struct {
	mu       sync.Mutex
	requests []model.PayoutRequest
	fail     error
}

func (p *fakePayouter) Transfer(ctx context.Context, req model.PayoutRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.fail != nil {
		return "", p.fail
	}
	return fmt.Sprintf("tr_%d", len(p.requests)), nil
}

func (p *fakePayouter) Calls() []model.PayoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PayoutRequest(nil), p.requests...)
}

func (p *fakePayouter) SetFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

type recordingPublisher struct {
	mu        sync.Mutex
	cancelled []model.BookingCancelledEvent
	refunds   []model.CompensationRefund
	approved  []model.BookingApprovedEvent
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, event model.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, event)
	return nil
}

func (p *recordingPublisher) PublishRefundRequested(ctx context.Context, refund model.CompensationRefund) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, refund)
	return nil
}

func (p *recordingPublisher) PublishBookingApproved(ctx context.Context, event model.BookingApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved = append(p.approved, event)
	return nil
}

func (p *recordingPublisher) Refunds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.refunds)
}

// mapCache кэш слотов в памяти с поколениями, запоминает сброшенные даты
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]model.Slot
	gens        map[string]int64
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{
		entries: make(map[string][]model.Slot),
		gens:    make(map[string]int64),
	}
}

func dayKey(teacherID int64, date string) string {
	return fmt.Sprintf("%d:%s", teacherID, date)
}

func cacheKey(teacherID int64, date string, gen int64, duration int) string {
	return fmt.Sprintf("%s:v%d:%d", dayKey(teacherID, date), gen, duration)
}

func (c *mapCache) Get(ctx context.Context, teacherID int64, date string, duration int) ([]model.Slot, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[dayKey(teacherID, date)]
	slots, ok := c.entries[cacheKey(teacherID, date, gen, duration)]
	return slots, gen, ok, nil
}

func (c *mapCache) Set(ctx context.Context, teacherID int64, date string, duration int, gen int64, slots []model.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[dayKey(teacherID, date)] != gen {
		return nil
	}
	c.entries[cacheKey(teacherID, date, gen, duration)] = slots
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, teacherID int64, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := dayKey(teacherID, date)
	for _, d := range service.AllowedDurations {
		delete(c.entries, cacheKey(teacherID, date, c.gens[day], d))
	}
	c.gens[day]++
	c.invalidated = append(c.invalidated, day)
	return nil
}

func (c *mapCache) Invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

type fixture struct {
	store     *memory.Store
	clock     *fakeClock
	payouter  *fakePayouter
	publisher *recordingPublisher
	cache     *mapCache

	users        *service.UserService
	bookings     *service.BookingService
	reschedules  *service.RescheduleService
	availability *service.AvailabilityService
	reminders    *service.ReminderService
	escrow       *service.EscrowService

	teacher *model.User
	student *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		clock:     &fakeClock{now: baseNow},
		payouter:  &fakePayouter{},
		publisher: &recordingPublisher{},
		cache:     newMapCache(),
	}
	logger := zap.NewNop()

	users := f.store.Users()
	bookings := f.store.Bookings()

	f.users = service.NewUserService(users, f.cache, logger, f.clock.Now)
	f.escrow = service.NewEscrowService(bookings, users, f.payouter, "usd", logger, f.clock.Now)
	f.bookings = service.NewBookingService(bookings, users, f.escrow, f.cache, f.publisher, logger, f.clock.Now)
	f.reschedules = service.NewRescheduleService(bookings, f.cache, logger, f.clock.Now)
	f.availability = service.NewAvailabilityService(users, bookings, f.cache, logger, f.clock.Now)
	f.reminders = service.NewReminderService(f.store.Reminders(), bookings, logger, f.clock.Now)

	ctx := context.Background()
	f.teacher = &model.User{
		TelegramID:      1001,
		FirstName:       "Anna",
		IsTeacher:       true,
		Timezone:        "UTC",
		PayoutAccountID: "acct_teacher",
		Availability: model.WeeklyAvailability{
			"monday":  {{Start: "09:00", End: "12:00"}},
			"tuesday": {{Start: "14:00", End: "18:00"}},
		},
	}
	require.NoError(t, users.Create(ctx, f.teacher))

	f.student = &model.User{TelegramID: 2002, FirstName: "Ivan", Timezone: "UTC"}
	require.NoError(t, users.Create(ctx, f.student))

	return f
}

// paymentEvent оплата урока по умолчанию: понедельник 10:00-11:00
func (f *fixture) paymentEvent(session string) model.PaymentConfirmedEvent {
	return model.PaymentConfirmedEvent{
		SessionID:       session,
		TeacherID:       f.teacher.ID,
		StudentID:       f.student.ID,
		Date:            lessonDate,
		StartTime:       "10:00",
		EndTime:         "11:00",
		DurationMinutes: 60,
		Location:        "https://meet.example.com/lesson",
		Price:           lessonPrice,
		Currency:        "usd",
	}
}

func (f *fixture) book(t *testing.T, session string) *model.Booking {
	t.Helper()
	booking, err := f.bookings.HandlePaymentConfirmed(context.Background(), f.paymentEvent(session))
	require.NoError(t, err)
	return booking
}

func (f *fixture) complete(t *testing.T, id uuid.UUID, party model.Party) *model.Booking {
	t.Helper()
	userID := f.student.ID
	if party == model.PartyTeacher {
		userID = f.teacher.ID
	}
	booking, err := f.bookings.MarkComplete(context.Background(), service.CompleteRequest{
		BookingID: id,
		Actor:     party,
		UserID:    userID,
	})
	require.NoError(t, err)
	return booking
}

func (f *fixture) pendingReminders(t *testing.T, id uuid.UUID) []*model.ReminderEvent {
	t.Helper()
	events, err := f.reminders.ForBooking(context.Background(), id)
	require.NoError(t, err)

	var pending []*model.ReminderEvent
	for _, e := range events {
		if e.DeliveryStatus == model.DeliveryStatusPending {
			pending = append(pending, e)
		}
	}
	return pending
}

func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}

func int64Ptr(v int64) *int64 {
	return &v
}

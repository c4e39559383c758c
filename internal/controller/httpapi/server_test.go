package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/memory"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type noopPayouter struct{}

func (noopPayouter) Transfer(ctx context.Context, req model.PayoutRequest) (string, error) {
	return "tr_test", nil
}

type testEnv struct {
	handler http.Handler
	clock   *clock
	teacher *model.User
	student *model.User
	other   *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()
	cache := service.NopSlotCache{}

	users := store.Users()
	bookings := store.Bookings()

	escrow := service.NewEscrowService(bookings, users, noopPayouter{}, "usd", logger, clk.Now)
	server := NewServer(Services{
		Bookings:     service.NewBookingService(bookings, users, escrow, cache, service.NopPublisher{}, logger, clk.Now),
		Reschedules:  service.NewRescheduleService(bookings, cache, logger, clk.Now),
		Availability: service.NewAvailabilityService(users, bookings, cache, logger, clk.Now),
		Users:        service.NewUserService(users, cache, logger, clk.Now),
		Reminders:    service.NewReminderService(store.Reminders(), bookings, logger, clk.Now),
	}, testSecret, logger)

	ctx := context.Background()
	env := &testEnv{handler: server.Handler(), clock: clk}
	env.teacher = &model.User{
		TelegramID:      1001,
		FirstName:       "Anna",
		IsTeacher:       true,
		Timezone:        "UTC",
		PayoutAccountID: "acct_teacher",
		Availability: model.WeeklyAvailability{
			"monday": {{Start: "09:00", End: "12:00"}},
		},
	}
	require.NoError(t, users.Create(ctx, env.teacher))
	env.student = &model.User{TelegramID: 2002, FirstName: "Ivan", Timezone: "UTC"}
	require.NoError(t, users.Create(ctx, env.student))
	env.other = &model.User{TelegramID: 3003, FirstName: "Oleg", Timezone: "UTC"}
	require.NoError(t, users.Create(ctx, env.other))

	return env
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func userToken(t *testing.T, id int64) string {
	return token(t, jwt.MapClaims{"sub": strconv.FormatInt(id, 10), "role": RoleUser})
}

func serviceToken(t *testing.T) string {
	return token(t, jwt.MapClaims{"sub": "payments", "role": RoleService})
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) payment(session, start, end string) model.PaymentConfirmedEvent {
	return model.PaymentConfirmedEvent{
		SessionID:       session,
		TeacherID:       e.teacher.ID,
		StudentID:       e.student.ID,
		Date:            "2026-03-02",
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: 60,
		Location:        "https://meet.example.com/lesson",
		Price:           4000,
		Currency:        "usd",
	}
}

func (e *testEnv) book(t *testing.T, session string) model.Booking {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/payments/confirmed", serviceToken(t), e.payment(session, "10:00", "11:00"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var booking model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))
	return booking
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		status int
	}{
		{"no token", http.MethodGet, "/v1/bookings", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/bookings", "not-a-jwt", http.StatusUnauthorized},
		{
			"wrong secret", http.MethodGet, "/v1/bookings",
			func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("other"))
				return s
			}(),
			http.StatusUnauthorized,
		},
		{"non numeric subject", http.MethodGet, "/v1/bookings", token(t, jwt.MapClaims{"sub": "abc"}), http.StatusUnauthorized},
		{"user on service route", http.MethodGet, "/v1/reminders/due", userToken(t, env.student.ID), http.StatusForbidden},
		{"service on user route", http.MethodGet, "/v1/bookings", serviceToken(t), http.StatusForbidden},
		{"default role is user", http.MethodGet, "/v1/bookings", token(t, jwt.MapClaims{"sub": float64(env.student.ID)}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.bearer, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPaymentConfirmed(t *testing.T) {
	env := newTestEnv(t)

	first := env.book(t, "cs_1")
	assert.Equal(t, env.teacher.ID, first.TeacherID)
	assert.Equal(t, int64(4000), first.AmountPaid)

	// Повтор того же события возвращает то же бронирование
	replay := env.book(t, "cs_1")
	assert.Equal(t, first.ID, replay.ID)

	rec := env.do(t, http.MethodPost, "/v1/payments/confirmed", serviceToken(t), env.payment("cs_2", "10:30", "11:30"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))

	invalid := env.payment("cs_3", "11:00", "10:00")
	rec = env.do(t, http.MethodPost, "/v1/payments/confirmed", serviceToken(t), invalid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeacherSlots(t *testing.T) {
	env := newTestEnv(t)
	env.book(t, "cs_1")

	path := fmt.Sprintf("/v1/teachers/%d/slots?date=2026-03-02&duration=60", env.teacher.ID)
	rec := env.do(t, http.MethodGet, path, userToken(t, env.student.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var slots []model.Slot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.NotEmpty(t, slots)

	taken := map[string]bool{}
	for _, s := range slots {
		taken[s.Start] = s.Taken
	}
	assert.False(t, taken["09:00"])
	assert.True(t, taken["10:00"])
	assert.True(t, taken["10:30"])
	assert.False(t, taken["11:00"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/teachers/%d/slots?date=2026-03-02&duration=abc", env.teacher.ID), userToken(t, env.student.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/teachers/x/slots?date=2026-03-02", userToken(t, env.student.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetAvailability(t *testing.T) {
	env := newTestEnv(t)
	body := model.WeeklyAvailability{"friday": {{Start: "08:00", End: "10:00"}}}
	path := fmt.Sprintf("/v1/teachers/%d/availability", env.teacher.ID)

	rec := env.do(t, http.MethodPut, path, userToken(t, env.student.ID), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, path, userToken(t, env.teacher.ID), body)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	bad := model.WeeklyAvailability{"friday": {{Start: "10:00", End: "08:00"}}}
	rec = env.do(t, http.MethodPut, path, userToken(t, env.teacher.ID), bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingAccess(t *testing.T) {
	env := newTestEnv(t)
	booking := env.book(t, "cs_1")
	path := "/v1/bookings/" + booking.ID.String()

	rec := env.do(t, http.MethodGet, path, userToken(t, env.student.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(model.BookingStatusConfirmed), resp["status"])

	rec = env.do(t, http.MethodGet, path, userToken(t, env.other.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/bookings/not-a-uuid", userToken(t, env.student.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/bookings", userToken(t, env.teacher.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodGet, "/v1/bookings", userToken(t, env.other.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCancelBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.book(t, "cs_1")
	path := "/v1/bookings/" + booking.ID.String() + "/cancel"

	rec := env.do(t, http.MethodPost, path, userToken(t, env.other.ID), cancelRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 22 часа до урока: возврат 50%
	rec = env.do(t, http.MethodPost, path, userToken(t, env.student.ID), cancelRequest{Reason: "заболел"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.CancelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 50, result.RefundPercent)
	assert.Equal(t, int64(2000), result.RefundAmount)

	rec = env.do(t, http.MethodPost, path, userToken(t, env.student.ID), cancelRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompleteBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.book(t, "cs_1")
	path := "/v1/bookings/" + booking.ID.String() + "/complete"

	// Учитель не может подтвердить урок до его окончания
	rec := env.do(t, http.MethodPost, path, userToken(t, env.teacher.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.clock.Set(time.Date(2026, 3, 2, 11, 5, 0, 0, time.UTC))

	rec = env.do(t, http.MethodPost, path, userToken(t, env.teacher.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, path, userToken(t, env.student.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(model.BookingStatusApproved), resp["status"])
}

func TestRescheduleFlow(t *testing.T) {
	env := newTestEnv(t)
	booking := env.book(t, "cs_1")
	base := "/v1/bookings/" + booking.ID.String() + "/reschedule"

	rec := env.do(t, http.MethodPost, base, userToken(t, env.student.ID), rescheduleRequest{
		Date:      "2026-03-02",
		StartTime: "11:00",
		Reason:    "пробки",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Принять может только другая сторона
	rec = env.do(t, http.MethodPost, base+"/accept", userToken(t, env.student.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/accept", userToken(t, env.teacher.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var moved model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moved))
	assert.Equal(t, "11:00", moved.StartTime)
	assert.Equal(t, "12:00", moved.EndTime)
	assert.Nil(t, moved.Proposal)

	rec = env.do(t, http.MethodPost, base+"/reject", userToken(t, env.teacher.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, base, userToken(t, env.student.ID), rescheduleRequest{Date: "02.03.2026", StartTime: "11:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReminders(t *testing.T) {
	env := newTestEnv(t)
	env.book(t, "cs_1")

	rec := env.do(t, http.MethodGet, "/v1/reminders/due", serviceToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// За 10 минут до урока пора слать оба оставшихся напоминания: за 1ч и за 15м
	env.clock.Set(time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC))

	rec = env.do(t, http.MethodGet, "/v1/reminders/due?limit=10", serviceToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var due []model.ReminderEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &due))
	require.Len(t, due, 2)

	path := fmt.Sprintf("/v1/reminders/%d/delivery", due[0].ID)
	rec = env.do(t, http.MethodPost, path, serviceToken(t), deliveryReport{Delivered: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/reminders/due", serviceToken(t), nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &due))
	assert.Len(t, due, 1)

	rec = env.do(t, http.MethodGet, "/v1/reminders/due?limit=0", serviceToken(t), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/reminders/999/delivery", serviceToken(t), deliveryReport{Delivered: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   error
		status int
	}{
		{service.ErrValidation, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrPolicy, http.StatusUnprocessableEntity},
		{service.ErrSettlement, http.StatusBadGateway},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &service.Error{Kind: tt.kind, Reason: "x"})
			if tt.status == http.StatusInternalServerError {
				err = tt.kind
			}
			assert.Equal(t, tt.status, statusFor(err))
		})
	}
}

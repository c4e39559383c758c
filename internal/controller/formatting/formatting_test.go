package formatting

import (
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "40.00 USD", FormatPrice(4000, "usd"))
	assert.Equal(t, "0.05 EUR", FormatPrice(5, "eur"))
	assert.Equal(t, "-12.50", FormatPrice(-1250, ""))
}

func TestPluralize(t *testing.T) {
	tests := map[int]string{
		0: "записей", 1: "запись", 2: "записи", 4: "записи", 5: "записей",
		11: "записей", 12: "записей", 21: "запись", 22: "записи", 111: "записей",
	}
	for count, want := range tests {
		assert.Equal(t, want, PluralizeBookings(count), count)
	}
	assert.Equal(t, "слота", PluralizeSlots(3))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 мин", FormatDuration(45))
	assert.Equal(t, "1 ч", FormatDuration(60))
	assert.Equal(t, "1 ч 30 мин", FormatDuration(90))
}

func TestFormatDateWithWeekday(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Пн, 02.03.2026", FormatDateWithWeekday(monday))
	assert.Equal(t, "02.03.2026 10:00", FormatDateTime(monday))
	assert.Equal(t, "?", GetWeekdayShortName(9))
}

func TestGetBookingStatusDisplay(t *testing.T) {
	assert.Equal(t, "Оплачено", GetBookingStatusDisplay(model.BookingStatusConfirmed).Text)
	assert.Equal(t, "✅", GetBookingStatusDisplay(model.BookingStatusApproved).Emoji)
	assert.Equal(t, "Неизвестно", GetBookingStatusDisplay("bogus").Text)
	assert.Equal(t, "ошибка, повторим", TransferStatusText(model.TransferStatusFailed))
}

func TestFormatBooking(t *testing.T) {
	cancelledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &model.Booking{
		ID:              uuid.MustParse("abcd1234-0000-0000-0000-000000000001"),
		Date:            "2026-03-02",
		StartTime:       "10:00",
		EndTime:         "11:00",
		DurationMinutes: 60,
		Timezone:        "UTC",
		StartsAt:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Location:        "Zoom",
		AmountPaid:      4000,
		Currency:        "usd",
	}

	card := FormatBooking(b)
	assert.Contains(t, card, "Запись abcd1234")
	assert.Contains(t, card, "Пн, 02.03.2026, 10:00-11:00 (UTC)")
	assert.Contains(t, card, "40.00 USD")
	assert.Contains(t, card, "Статус: Оплачено")
	assert.NotContains(t, card, "Возврат")

	b.CancelledAt = &cancelledAt
	b.CancelledBy = model.PartyStudent
	b.RefundPercent = 50
	b.RefundAmount = 2000
	b.Proposal = &model.RescheduleProposal{ProposedDate: "2026-03-03", ProposedStartTime: "14:00", Reason: "болею"}

	card = FormatBooking(b)
	assert.Contains(t, card, "Возврат: 50% (20.00 USD)")
	assert.Contains(t, card, "Предложен перенос на 2026-03-03 14:00 (болею)")
}

func TestFormatSlots(t *testing.T) {
	assert.Equal(t, "На 2026-03-02 свободных слотов нет.", FormatSlots("2026-03-02", nil))
	assert.Equal(t, "На 2026-03-02 свободных слотов нет.",
		FormatSlots("2026-03-02", []model.Slot{{Start: "09:00", End: "10:00", Taken: true}}))

	text := FormatSlots("2026-03-02", []model.Slot{
		{Start: "09:00", End: "10:00"},
		{Start: "10:00", End: "11:00", Taken: true},
	})
	assert.Equal(t, "🗓 2026-03-02: 1 слот\n\n🟢 09:00-10:00\n🔴 10:00-11:00", text)
}

package formatting

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

// ShortID первые символы UUID, по ним бронирование находится в командах
func ShortID(b *model.Booking) string {
	return b.ID.String()[:8]
}

// FormatBooking карточка бронирования для участника
func FormatBooking(b *model.Booking) string {
	display := GetBookingStatusDisplay(b.Status())
	starts := b.StartsAt.In(b.Zone())

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Запись %s\n\n", display.Emoji, ShortID(b))
	fmt.Fprintf(&sb, "📅 %s, %s-%s (%s)\n", FormatDateWithWeekday(starts), b.StartTime, b.EndTime, b.Timezone)
	fmt.Fprintf(&sb, "⏱ %s\n", FormatDuration(b.DurationMinutes))
	fmt.Fprintf(&sb, "📍 %s\n", b.Location)
	fmt.Fprintf(&sb, "💰 %s\n", FormatPrice(b.AmountPaid, b.Currency))
	fmt.Fprintf(&sb, "📊 Статус: %s", display.Text)

	switch {
	case b.CancelledAt != nil:
		fmt.Fprintf(&sb, "\n↩️ Возврат: %d%% (%s)", b.RefundPercent, FormatPrice(b.RefundAmount, b.Currency))
	case b.Status() == model.BookingStatusApproved:
		fmt.Fprintf(&sb, "\n💸 Выплата: %s", TransferStatusText(b.TransferStatus))
	}

	if p := b.Proposal; p != nil {
		fmt.Fprintf(&sb, "\n🔁 Предложен перенос на %s %s", p.ProposedDate, p.ProposedStartTime)
		if p.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", p.Reason)
		}
	}

	return sb.String()
}

// FormatSlots список слотов на дату
func FormatSlots(date string, slots []model.Slot) string {
	free := 0
	for _, s := range slots {
		if !s.Taken {
			free++
		}
	}
	if free == 0 {
		return fmt.Sprintf("На %s свободных слотов нет.", date)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 %s: %d %s\n", date, free, PluralizeSlots(free))
	for _, s := range slots {
		mark := "🟢"
		if s.Taken {
			mark = "🔴"
		}
		fmt.Fprintf(&sb, "\n%s %s-%s", mark, s.Start, s.End)
	}
	return sb.String()
}

package formatting

import "github.com/Freeeeeet/lesson_booking/internal/model"

// BookingStatusDisplay представляет отображение статуса бронирования
type BookingStatusDisplay struct {
	Emoji string
	Text  string
}

// GetBookingStatusDisplay возвращает emoji и текст для статуса бронирования
func GetBookingStatusDisplay(status model.BookingStatus) BookingStatusDisplay {
	displays := map[model.BookingStatus]BookingStatusDisplay{
		model.BookingStatusConfirmed:       {"💳", "Оплачено"},
		model.BookingStatusTeacherApproved: {"👨‍🏫", "Подтверждено учителем"},
		model.BookingStatusStudentApproved: {"🧑‍🎓", "Подтверждено студентом"},
		model.BookingStatusApproved:        {"✅", "Урок состоялся"},
		model.BookingStatusCancelled:       {"❌", "Отменено"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return BookingStatusDisplay{"❓", "Неизвестно"}
}

// TransferStatusText текст статуса выплаты учителю
func TransferStatusText(status model.TransferStatus) string {
	switch status {
	case model.TransferStatusPending:
		return "ожидает"
	case model.TransferStatusProcessing:
		return "в обработке"
	case model.TransferStatusCompleted:
		return "выплачено"
	case model.TransferStatusFailed:
		return "ошибка, повторим"
	default:
		return string(status)
	}
}

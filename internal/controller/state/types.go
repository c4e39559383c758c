package state

import (
	"time"

	"github.com/google/uuid"
)

// UserState шаг диалога, на котором бот ждёт текст от пользователя
type UserState string

const (
	StateNone UserState = "" // Нет активного диалога

	// Перенос урока: ждём новую дату и время
	StateRescheduleTime UserState = "reschedule_time"

	// Отмена урока: ждём причину
	StateCancelReason UserState = "cancel_reason"
)

// Dialog незавершённая операция над одной записью
type Dialog struct {
	State     UserState
	BookingID uuid.UUID
	StartedAt time.Time
}

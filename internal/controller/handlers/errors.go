package handlers

import (
	"errors"

	"github.com/Freeeeeet/lesson_booking/internal/service"
)

// ErrBookingNotFound бронирование по короткому ID не найдено среди записей пользователя
var ErrBookingNotFound = errors.New("booking not found")

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, service.ErrNotFound):
		return "❌ Запись не найдена. Список записей: /mybookings"
	case errors.Is(err, service.ErrValidation):
		return "❌ Неверные данные: " + service.Reason(err)
	case errors.Is(err, service.ErrConflict):
		return "⛔️ Это время уже занято. Выберите другое: /slots"
	case errors.Is(err, service.ErrPolicy):
		return "⚠️ Действие недоступно: " + service.Reason(err)
	case errors.Is(err, service.ErrForbidden):
		return "❌ У вас нет доступа к этой записи"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}

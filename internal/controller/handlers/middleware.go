package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Freeeeeet/lesson_booking/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser проверяет что пользователь существует
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.userService.GetByTelegramID(ctx, telegramID)

	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if user == nil {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Пользователь не найден. Используйте /start для регистрации.")
		return nil, false
	}

	return user, true
}

// requireTeacher проверяет что пользователь является учителем
func (h *Handlers) requireTeacher(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, false
	}

	if !user.IsTeacher {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Эта команда доступна только учителям.\n\nСтать учителем: /becometeacher")
		return nil, false
	}

	return user, true
}

// findBooking ищет запись пользователя по короткому ID из /mybookings
func (h *Handlers) findBooking(ctx context.Context, user *model.User, shortID string) (*model.Booking, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))
	if len(shortID) < 4 {
		return nil, ErrBookingNotFound
	}

	bookings, err := h.bookingService.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return matchBooking(bookings, shortID)
}

func matchBooking(bookings []*model.Booking, prefix string) (*model.Booking, error) {
	var found *model.Booking
	for _, b := range bookings {
		if strings.HasPrefix(b.ID.String(), prefix) {
			if found != nil {
				return nil, errors.New("ambiguous booking id")
			}
			found = b
		}
	}
	if found == nil {
		return nil, ErrBookingNotFound
	}
	return found, nil
}

// replyResult отправляет карточку записи или текст ошибки
func (h *Handlers) replyResult(ctx context.Context, b *bot.Bot, chatID int64, prefix string, booking *model.Booking, err error) {
	if err != nil {
		if !isDomainError(err) {
			h.logger.Error("Command failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		h.sendError(ctx, b, chatID, ErrorMessage(err))
		return
	}
	h.sendMessage(ctx, b, chatID, prefix+"\n\n"+formatting.FormatBooking(booking))
}

func isDomainError(err error) bool {
	var e *service.Error
	return errors.As(err, &e) || errors.Is(err, ErrBookingNotFound)
}

// commandArgs аргументы команды после её имени
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// sendError отправляет сообщение об ошибке и логирует если не удалось
func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send error message",
			zap.Int64("chat_id", chatID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// UserDirectory находит пользователя для доставки сообщения
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// MessageSender отправка сообщения в чат
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) error
}

// botSender адаптер *bot.Bot под MessageSender
type botSender struct {
	bot *bot.Bot
}

func (s botSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) error {
	_, err := s.bot.SendMessage(ctx, params)
	return err
}

// Notifier доставляет напоминания об уроке обоим участникам в Telegram
type Notifier struct {
	sender MessageSender
	users  UserDirectory
	logger *zap.Logger
}

func NewNotifier(botInstance *bot.Bot, users UserDirectory, logger *zap.Logger) *Notifier {
	return newNotifier(botSender{bot: botInstance}, users, logger)
}

func newNotifier(sender MessageSender, users UserDirectory, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, users: users, logger: logger}
}

// SendReminder отправляет напоминание студенту и учителю.
// Ошибка возвращается, если не удалось доставить ни одному из них.
func (n *Notifier) SendReminder(ctx context.Context, event *model.ReminderEvent, booking *model.Booking) error {
	text := fmt.Sprintf("⏰ %s (%s)\n\n%s",
		reminderTitle(event.Type),
		formatting.FormatDateTime(booking.StartsAt.In(booking.Zone())),
		formatting.FormatBooking(booking),
	)

	var errs []error
	delivered := 0
	for _, userID := range []int64{booking.StudentID, booking.TeacherID} {
		if err := n.send(ctx, userID, text); err != nil {
			n.logger.Warn("Failed to deliver reminder",
				zap.Int64("reminder_id", event.ID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, userID int64, text string) error {
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	return n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: user.TelegramID,
		Text:   text,
	})
}

func reminderTitle(t model.ReminderType) string {
	switch t {
	case model.Reminder24h:
		return "Урок через 24 часа"
	case model.Reminder1h:
		return "Урок через час"
	case model.Reminder15m:
		return "Урок через 15 минут"
	default:
		return "Скоро урок"
	}
}

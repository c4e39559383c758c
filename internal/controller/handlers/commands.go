package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	user := update.Message.From

	// Регистрируем пользователя
	registeredUser, err := h.userService.RegisterUser(
		ctx,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	)

	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Здесь можно записаться на урок, оплатить его и подтвердить, что он состоялся.\n\n"+
			"/mybookings - Мои записи\n"+
			"/slots - Свободное время учителя\n"+
			"/help - Справка\n\n"+
			"Для учителей:\n"+
			"/becometeacher - Стать учителем\n"+
			"/setavailability - Расписание на неделю",
		registeredUser.DisplayName(),
	)

	h.sendMessage(ctx, b, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/mybookings - Мои записи\n" +
		"/slots <учитель> <ГГГГ-ММ-ДД> [минут] - Свободное время\n" +
		"/complete <запись> - Урок состоялся\n" +
		"/cancel <запись> - Отменить запись\n" +
		"/reschedule <запись> - Предложить перенос\n" +
		"/accept <запись> - Принять перенос\n" +
		"/reject <запись> - Отклонить перенос\n" +
		"/cancel - Прервать текущий диалог\n\n" +
		"Для учителей:\n" +
		"/becometeacher [часовой пояс] - Стать учителем\n" +
		"/setavailability mon 09:00-12:00; wed 10:00-13:00\n" +
		"/payout <аккаунт> - Счёт для выплат\n\n" +
		"Возврат при отмене студентом: больше 24 ч до урока - 100%, от 12 до 24 ч - 50%, меньше 12 ч - без возврата."

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleBecomeTeacher обрабатывает команду /becometeacher
func (h *Handlers) HandleBecomeTeacher(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	timezone := ""
	if args := commandArgs(update.Message.Text); len(args) > 0 {
		timezone = args[0]
	}

	teacher, err := h.userService.MakeTeacher(ctx, user.ID, timezone)
	if err != nil {
		h.sendError(ctx, b, update.Message.Chat.ID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"🎓 Теперь вы учитель! Ваш ID: %d, часовой пояс: %s\n\n"+
			"Опубликуйте расписание: /setavailability mon 09:00-12:00; wed 10:00-13:00\n"+
			"Укажите счёт для выплат: /payout <аккаунт>",
		teacher.ID, teacher.Timezone,
	))
}

// HandlePayout обрабатывает команду /payout
func (h *Handlers) HandlePayout(ctx context.Context, b *bot.Bot, update *models.Update) {
	teacher, ok := h.requireTeacher(ctx, b, update)
	if !ok {
		return
	}

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Использование: /payout <аккаунт>")
		return
	}

	if err := h.userService.SetPayoutAccount(ctx, teacher.ID, args[0]); err != nil {
		h.sendError(ctx, b, update.Message.Chat.ID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Счёт для выплат сохранён")
}

// HandleCancel /cancel без аргументов прерывает диалог, с ID записи отменяет её
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	if args := commandArgs(update.Message.Text); len(args) > 0 {
		h.startCancelBooking(ctx, b, update, args[0])
		return
	}

	if !h.stateManager.Clear(update.Message.From.ID) {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	h.handleDialog(ctx, b, update)
}

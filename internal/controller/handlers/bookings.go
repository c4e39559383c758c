package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lesson_booking/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_booking/internal/controller/state"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const defaultSlotDuration = 60

// HandleSetAvailability обрабатывает команду /setavailability
func (h *Handlers) HandleSetAvailability(ctx context.Context, b *bot.Bot, update *models.Update) {
	teacher, ok := h.requireTeacher(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	text := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/setavailability"))
	if text == "" {
		h.sendError(ctx, b, chatID, "❌ Использование: /setavailability mon 09:00-12:00 14:00-18:00; wed 10:00-13:00")
		return
	}

	availability, err := parseAvailability(text)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ "+err.Error())
		return
	}

	if err := h.userService.SetAvailability(ctx, teacher.ID, availability); err != nil {
		if !isDomainError(err) {
			h.logger.Error("Failed to set availability", zap.Int64("teacher_id", teacher.ID), zap.Error(err))
		}
		h.sendError(ctx, b, chatID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, chatID, "✅ Расписание обновлено")
}

// HandleSlots обрабатывает команду /slots <учитель> <дата> [минут]
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireUser(ctx, b, update); !ok {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) < 2 {
		h.sendMessage(ctx, b, chatID, h.teacherList(ctx)+"\n\nИспользование: /slots <учитель> <ГГГГ-ММ-ДД> [15|30|45|60]")
		return
	}

	teacherID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ ID учителя должен быть числом")
		return
	}

	duration := defaultSlotDuration
	if len(args) > 2 {
		duration, err = strconv.Atoi(args[2])
		if err != nil {
			h.sendError(ctx, b, chatID, "❌ Длительность должна быть числом минут")
			return
		}
	}

	slots, err := h.availabilityService.Slots(ctx, teacherID, args[1], duration)
	if err != nil {
		if !isDomainError(err) {
			h.logger.Error("Failed to get slots", zap.Int64("teacher_id", teacherID), zap.Error(err))
		}
		h.sendError(ctx, b, chatID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, chatID, formatting.FormatSlots(args[1], slots))
}

func (h *Handlers) teacherList(ctx context.Context) string {
	teachers, err := h.userService.ListTeachers(ctx)
	if err != nil {
		h.logger.Error("Failed to list teachers", zap.Error(err))
		return "❌ Не удалось загрузить список учителей"
	}
	if len(teachers) == 0 {
		return "Учителей пока нет."
	}

	var sb strings.Builder
	sb.WriteString("👨‍🏫 Учителя:\n")
	for _, t := range teachers {
		fmt.Fprintf(&sb, "\n%d - %s (%s)", t.ID, t.DisplayName(), t.Timezone)
	}
	return sb.String()
}

// HandleMyBookings обрабатывает команду /mybookings
func (h *Handlers) HandleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	bookings, err := h.bookingService.ListForUser(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list bookings", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Не удалось загрузить записи")
		return
	}

	if len(bookings) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 У вас пока нет записей")
		return
	}

	cards := make([]string, 0, len(bookings))
	for _, booking := range bookings {
		cards = append(cards, formatting.FormatBooking(booking))
	}
	header := fmt.Sprintf("📋 У вас %d %s:\n\n", len(bookings), formatting.PluralizeBookings(len(bookings)))
	h.sendMessage(ctx, b, chatID, header+strings.Join(cards, "\n\n"))
}

// HandleComplete обрабатывает команду /complete <запись>
func (h *Handlers) HandleComplete(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, booking, party, ok := h.bookingFromArgs(ctx, b, update, "/complete")
	if !ok {
		return
	}

	updated, err := h.bookingService.MarkComplete(ctx, service.CompleteRequest{
		BookingID: booking.ID,
		Actor:     party,
		UserID:    user.ID,
	})
	h.replyResult(ctx, b, update.Message.Chat.ID, "✅ Урок отмечен как состоявшийся", updated, err)
}

// startCancelBooking запрашивает причину отмены
func (h *Handlers) startCancelBooking(ctx context.Context, b *bot.Bot, update *models.Update, shortID string) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	booking, err := h.findBooking(ctx, user, shortID)
	if err != nil {
		h.replyResult(ctx, b, chatID, "", nil, err)
		return
	}

	h.stateManager.Begin(update.Message.From.ID, state.StateCancelReason, booking.ID)

	h.sendMessage(ctx, b, chatID, fmt.Sprintf(
		"Отмена записи %s.\n\nНапишите причину отмены или \"-\", чтобы отменить без причины.\n/cancel - прервать",
		formatting.ShortID(booking),
	))
}

// HandleReschedule обрабатывает команду /reschedule <запись>
func (h *Handlers) HandleReschedule(ctx context.Context, b *bot.Bot, update *models.Update) {
	_, booking, _, ok := h.bookingFromArgs(ctx, b, update, "/reschedule")
	if !ok {
		return
	}

	h.stateManager.Begin(update.Message.From.ID, state.StateRescheduleTime, booking.ID)

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"Перенос записи %s.\n\nНапишите новую дату и время в часовом поясе %s:\nГГГГ-ММ-ДД ЧЧ:ММ [причина]\n\n/cancel - прервать",
		formatting.ShortID(booking), booking.Timezone,
	))
}

// HandleAccept обрабатывает команду /accept <запись>
func (h *Handlers) HandleAccept(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, booking, _, ok := h.bookingFromArgs(ctx, b, update, "/accept")
	if !ok {
		return
	}

	updated, err := h.rescheduleService.Accept(ctx, service.RespondRequest{BookingID: booking.ID, UserID: user.ID})
	h.replyResult(ctx, b, update.Message.Chat.ID, "✅ Перенос принят", updated, err)
}

// HandleReject обрабатывает команду /reject <запись>
func (h *Handlers) HandleReject(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, booking, _, ok := h.bookingFromArgs(ctx, b, update, "/reject")
	if !ok {
		return
	}

	updated, err := h.rescheduleService.Reject(ctx, service.RespondRequest{BookingID: booking.ID, UserID: user.ID})
	h.replyResult(ctx, b, update.Message.Chat.ID, "🚫 Перенос отклонён", updated, err)
}

// bookingFromArgs находит запись по первому аргументу команды и сторону пользователя в ней
func (h *Handlers) bookingFromArgs(ctx context.Context, b *bot.Bot, update *models.Update, command string) (*model.User, *model.Booking, model.Party, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, nil, "", false
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) == 0 {
		h.sendError(ctx, b, chatID, fmt.Sprintf("❌ Использование: %s <запись>\n\nID записи есть в /mybookings", command))
		return nil, nil, "", false
	}

	booking, err := h.findBooking(ctx, user, args[0])
	if err != nil {
		h.replyResult(ctx, b, chatID, "", nil, err)
		return nil, nil, "", false
	}

	party, ok := booking.PartyOf(user.ID)
	if !ok {
		h.sendError(ctx, b, chatID, ErrorMessage(ErrBookingNotFound))
		return nil, nil, "", false
	}

	return user, booking, party, true
}

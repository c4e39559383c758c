package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/lesson_booking/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_booking/internal/controller/state"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handlers) handleDialog(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID

	switch h.stateManager.State(telegramID) {
	case state.StateRescheduleTime:
		h.handleRescheduleInput(ctx, b, update)
	case state.StateCancelReason:
		h.handleCancelReasonInput(ctx, b, update)
	default:
		h.logger.Debug("Text message without dialog", zap.Int64("telegram_id", telegramID))
	}
}

// dialogBooking достаёт запись, сохранённую в состоянии диалога
func (h *Handlers) dialogBooking(telegramID int64) (uuid.UUID, bool) {
	d, ok := h.stateManager.Current(telegramID)
	if !ok || d.BookingID == uuid.Nil {
		return uuid.Nil, false
	}
	return d.BookingID, true
}

func (h *Handlers) handleRescheduleInput(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	bookingID, ok := h.dialogBooking(telegramID)
	if !ok {
		h.stateManager.Clear(telegramID)
		h.sendError(ctx, b, chatID, "❌ Диалог устарел. Начните заново: /reschedule <запись>")
		return
	}

	date, start, reason, err := parseReschedule(update.Message.Text)
	if err != nil {
		// Состояние не сбрасываем, даём исправить ввод
		h.sendError(ctx, b, chatID, "❌ "+err.Error())
		return
	}

	booking, err := h.bookingService.Get(ctx, bookingID)
	if err != nil {
		h.stateManager.Clear(telegramID)
		h.replyResult(ctx, b, chatID, "", nil, err)
		return
	}
	party, ok := booking.PartyOf(user.ID)
	if !ok {
		h.stateManager.Clear(telegramID)
		h.sendError(ctx, b, chatID, ErrorMessage(ErrBookingNotFound))
		return
	}

	h.stateManager.Clear(telegramID)
	updated, err := h.rescheduleService.Propose(ctx, service.ProposeRequest{
		BookingID:    bookingID,
		RequestedBy:  party,
		UserID:       user.ID,
		NewDate:      date,
		NewStartTime: start,
		Reason:       reason,
	})
	if err != nil {
		h.replyResult(ctx, b, chatID, "", nil, err)
		return
	}

	h.replyResult(ctx, b, chatID, fmt.Sprintf(
		"📨 Перенос предложен. Вторая сторона может ответить /accept %s или /reject %s",
		formatting.ShortID(updated), formatting.ShortID(updated),
	), updated, nil)
}

func (h *Handlers) handleCancelReasonInput(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	bookingID, ok := h.dialogBooking(telegramID)
	h.stateManager.Clear(telegramID)
	if !ok {
		h.sendError(ctx, b, chatID, "❌ Диалог устарел. Начните заново: /cancel <запись>")
		return
	}

	reason := strings.TrimSpace(update.Message.Text)
	if reason == "-" {
		reason = ""
	}

	booking, err := h.bookingService.Get(ctx, bookingID)
	if err != nil {
		h.replyResult(ctx, b, chatID, "", nil, err)
		return
	}
	party, ok := booking.PartyOf(user.ID)
	if !ok {
		h.sendError(ctx, b, chatID, ErrorMessage(ErrBookingNotFound))
		return
	}

	result, err := h.bookingService.Cancel(ctx, service.CancelRequest{
		BookingID:   bookingID,
		CancelledBy: party,
		UserID:      user.ID,
		Reason:      reason,
	})
	if err != nil {
		h.replyResult(ctx, b, chatID, "", nil, err)
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf(
		"✅ Запись %s отменена.\n↩️ Возврат студенту: %d%% (%s)",
		formatting.ShortID(booking), result.RefundPercent, formatting.FormatPrice(result.RefundAmount, booking.Currency),
	))
}

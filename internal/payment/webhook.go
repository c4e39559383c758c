package payment

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Ключи metadata checkout-сессии, которые заполняет платёжная страница
const (
	metaTeacherID = "teacher_id"
	metaStudentID = "student_id"
	metaDate      = "date"
	metaStartTime = "start_time"
	metaEndTime   = "end_time"
	metaDuration  = "duration_minutes"
	metaLocation  = "location"
	metaDiscount  = "discount"
)

// WebhookParser проверяет подпись вебхука и достаёт событие оплаты
type WebhookParser struct {
	secret string
}

func NewWebhookParser(secret string) *WebhookParser {
	return &WebhookParser{secret: secret}
}

// ParseCheckoutCompleted возвращает событие оплаты из checkout.session.completed.
// ok=false для прочих событий и неоплаченных сессий.
func (p *WebhookParser) ParseCheckoutCompleted(payload []byte, signature string) (event *model.PaymentConfirmedEvent, ok bool, err error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("verify webhook: %w", err)
	}

	if ev.Type != stripe.EventTypeCheckoutSessionCompleted || ev.Data == nil {
		return nil, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
		return nil, false, fmt.Errorf("decode checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, false, nil
	}

	event, err = paymentEventFromSession(&session)
	if err != nil {
		return nil, false, err
	}
	return event, true, nil
}

func paymentEventFromSession(session *stripe.CheckoutSession) (*model.PaymentConfirmedEvent, error) {
	meta := session.Metadata

	teacherID, err := strconv.ParseInt(meta[metaTeacherID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", metaTeacherID, err)
	}
	studentID, err := strconv.ParseInt(meta[metaStudentID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", metaStudentID, err)
	}
	duration, err := strconv.Atoi(meta[metaDuration])
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", metaDuration, err)
	}

	event := &model.PaymentConfirmedEvent{
		SessionID:       session.ID,
		TeacherID:       teacherID,
		StudentID:       studentID,
		Date:            meta[metaDate],
		StartTime:       meta[metaStartTime],
		EndTime:         meta[metaEndTime],
		DurationMinutes: duration,
		Location:        meta[metaLocation],
		Price:           session.AmountTotal,
		Currency:        string(session.Currency),
	}

	// amount_total уже за вычетом скидки, цена восстанавливается
	if raw, ok := meta[metaDiscount]; ok && raw != "" {
		discount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", metaDiscount, err)
		}
		event.Price += discount
		event.Discount = &discount
	}

	return event, nil
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingCancelledEvent уходит платёжному шлюзу как инструкция на возврат
type BookingCancelledEvent struct {
	BookingID        uuid.UUID `json:"booking_id"`
	PaymentSessionID string    `json:"payment_session_id"`
	CancelledBy      Party     `json:"cancelled_by"`
	RefundPercent    int       `json:"refund_percent"`
	RefundAmount     int64     `json:"refund_amount"`
	Currency         string    `json:"currency"`
	CancelledAt      time.Time `json:"cancelled_at"`
}

// BookingApprovedEvent публикуется когда обе стороны подтвердили урок
type BookingApprovedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	TeacherID  int64     `json:"teacher_id"`
	StudentID  int64     `json:"student_id"`
	AmountPaid int64     `json:"amount_paid"`
	ApprovedAt time.Time `json:"approved_at"`
}

// PayoutRequest перевод доли учителя
type PayoutRequest struct {
	BookingID      uuid.UUID
	Destination    string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

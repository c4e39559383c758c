package model

import "time"

// PaymentConfirmedEvent приходит от платёжного шлюза после успешного списания.
// SessionID уникален для платежа и используется для идемпотентности.
type PaymentConfirmedEvent struct {
	SessionID       string `json:"session_id"`
	TeacherID       int64  `json:"teacher_id"`
	StudentID       int64  `json:"student_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Location        string `json:"location"`
	Price           int64  `json:"price"` // в центах, уже списано
	Discount        *int64 `json:"discount,omitempty"`
	Currency        string `json:"currency"`
}

// CompensationRefund платёж, который списан, но бронирование не создано
type CompensationRefund struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	TeacherID int64     `json:"teacher_id"`
	StudentID int64     `json:"student_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

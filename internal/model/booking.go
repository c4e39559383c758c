package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed       BookingStatus = "confirmed"        // Оплачено, деньги удержаны
	BookingStatusTeacherApproved BookingStatus = "teacher_approved" // Подтвердил только учитель
	BookingStatusStudentApproved BookingStatus = "student_approved" // Подтвердил только студент
	BookingStatusApproved        BookingStatus = "approved"         // Подтвердили оба, финальный
	BookingStatusCancelled       BookingStatus = "cancelled"        // Отменено, финальный
)

// Party сторона урока
type Party string

const (
	PartyStudent Party = "student"
	PartyTeacher Party = "teacher"
)

// Valid проверяет что сторона известна
func (p Party) Valid() bool {
	return p == PartyStudent || p == PartyTeacher
}

// Counterparty возвращает другую сторону
func (p Party) Counterparty() Party {
	if p == PartyTeacher {
		return PartyStudent
	}
	return PartyTeacher
}

type TransferStatus string

const (
	TransferStatusPending    TransferStatus = "pending"
	TransferStatusProcessing TransferStatus = "processing" // выплата захвачена, запрос к провайдеру в процессе
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
)

// DeriveStatus вычисляет статус бронирования из флагов подтверждения.
// Статус нигде не хранится отдельно, это единственное место его вычисления.
func DeriveStatus(teacherApproved, studentConfirmed, cancelled bool) BookingStatus {
	switch {
	case cancelled:
		return BookingStatusCancelled
	case teacherApproved && studentConfirmed:
		return BookingStatusApproved
	case teacherApproved:
		return BookingStatusTeacherApproved
	case studentConfirmed:
		return BookingStatusStudentApproved
	default:
		return BookingStatusConfirmed
	}
}

type RescheduleProposal struct {
	ProposedDate      string    `json:"proposed_date"`       // YYYY-MM-DD
	ProposedStartTime string    `json:"proposed_start_time"` // HH:MM
	RequestedBy       Party     `json:"requested_by"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
}

type Booking struct {
	ID                  uuid.UUID           `json:"id"`
	PaymentSessionID    string              `json:"payment_session_id"`
	TeacherID           int64               `json:"teacher_id"`
	StudentID           int64               `json:"student_id"`
	Date                string              `json:"date"`       // YYYY-MM-DD в часовом поясе учителя
	StartTime           string              `json:"start_time"` // HH:MM
	EndTime             string              `json:"end_time"`   // HH:MM
	DurationMinutes     int                 `json:"duration_minutes"`
	Timezone            string              `json:"timezone"`
	StartsAt            time.Time           `json:"starts_at"`
	EndsAt              time.Time           `json:"ends_at"`
	Location            string              `json:"location"`
	AmountPaid          int64               `json:"amount_paid"` // в центах
	Discount            int64               `json:"discount"`
	Currency            string              `json:"currency"`
	PaymentHeld         bool                `json:"payment_held"`
	TransferStatus      TransferStatus      `json:"transfer_status"`
	TransferID          string              `json:"transfer_id,omitempty"`
	TeacherPayout       int64               `json:"teacher_payout"`
	PlatformFee         int64               `json:"platform_fee"`
	TeacherApproved     bool                `json:"teacher_approved"`
	StudentConfirmed    bool                `json:"student_confirmed"`
	TeacherApprovedAt   *time.Time          `json:"teacher_approved_at,omitempty"`
	StudentConfirmedAt  *time.Time          `json:"student_confirmed_at,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	CancelledBy         Party               `json:"cancelled_by,omitempty"`
	CancelReason        string              `json:"cancel_reason,omitempty"`
	RefundPercent       int                 `json:"refund_percent"`
	RefundAmount        int64               `json:"refund_amount"`
	TeacherCompensation int64               `json:"teacher_compensation"`
	Proposal            *RescheduleProposal `json:"reschedule_proposal,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Status возвращает производный статус
func (b *Booking) Status() BookingStatus {
	return DeriveStatus(b.TeacherApproved, b.StudentConfirmed, b.CancelledAt != nil)
}

// IsActive занимает ли бронирование интервал в расписании учителя
func (b *Booking) IsActive() bool {
	return b.CancelledAt == nil
}

// IsTerminal approved и cancelled финальные
func (b *Booking) IsTerminal() bool {
	s := b.Status()
	return s == BookingStatusApproved || s == BookingStatusCancelled
}

// PartyOf возвращает сторону пользователя в бронировании
func (b *Booking) PartyOf(userID int64) (Party, bool) {
	switch userID {
	case b.TeacherID:
		return PartyTeacher, true
	case b.StudentID:
		return PartyStudent, true
	default:
		return "", false
	}
}

// UserOf возвращает ID пользователя для стороны
func (b *Booking) UserOf(p Party) int64 {
	if p == PartyTeacher {
		return b.TeacherID
	}
	return b.StudentID
}

// Zone часовой пояс, в котором заданы Date и StartTime
func (b *Booking) Zone() *time.Location {
	if loc, err := time.LoadLocation(b.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// Interval возвращает [start, end) в минутах от полуночи
func (b *Booking) Interval() (start, end int) {
	start, _ = ParseClock(b.StartTime)
	end = start + b.DurationMinutes
	return start, end
}

// Clone возвращает глубокую копию
func (b *Booking) Clone() *Booking {
	c := *b
	if b.Proposal != nil {
		p := *b.Proposal
		c.Proposal = &p
	}
	c.TeacherApprovedAt = cloneTime(b.TeacherApprovedAt)
	c.StudentConfirmedAt = cloneTime(b.StudentConfirmedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

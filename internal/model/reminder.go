package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderType string

const (
	Reminder24h ReminderType = "24h"
	Reminder1h  ReminderType = "1h"
	Reminder15m ReminderType = "15m"
)

// ReminderTypes в порядке срабатывания
var ReminderTypes = []ReminderType{Reminder24h, Reminder1h, Reminder15m}

// Offset возвращает смещение напоминания до начала урока
func (t ReminderType) Offset() time.Duration {
	switch t {
	case Reminder24h:
		return 24 * time.Hour
	case Reminder1h:
		return time.Hour
	case Reminder15m:
		return 15 * time.Minute
	default:
		return 0
	}
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

type ReminderEvent struct {
	ID             int64          `json:"id"`
	BookingID      uuid.UUID      `json:"booking_id"`
	Type           ReminderType   `json:"type"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Attempts       int            `json:"attempts"`
	LastError      string         `json:"last_error,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, booking_id, type, scheduled_for, delivery_status, attempts, last_error, sent_at, created_at`

type ReminderRepository struct {
	db base.DBTX
}

func NewReminderRepository(db base.DBTX) *ReminderRepository {
	return &ReminderRepository{db: db}
}

var _ service.ReminderStore = (*ReminderRepository)(nil)

// InsertBatch сохраняет напоминания бронирования
func (r *ReminderRepository) InsertBatch(ctx context.Context, events []*model.ReminderEvent) error {
	query := `
		INSERT INTO reminder_events (booking_id, type, scheduled_for, delivery_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	for _, e := range events {
		err := r.db.QueryRow(ctx, query,
			e.BookingID,
			string(e.Type),
			e.ScheduledFor,
			string(e.DeliveryStatus),
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}

	return nil
}

// DeletePending удаляет неотправленные напоминания бронирования
func (r *ReminderRepository) DeletePending(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	affected, err := base.ExecAffected(ctx, r.db,
		`DELETE FROM reminder_events WHERE booking_id = $1 AND delivery_status = 'pending'`,
		bookingID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete pending reminders: %w", err)
	}
	return affected, nil
}

// ListDue напоминания, время которых наступило
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ReminderEvent, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminder_events
		WHERE delivery_status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// ListByBooking все напоминания бронирования
func (r *ReminderRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.ReminderEvent, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminder_events
		WHERE booking_id = $1
		ORDER BY scheduled_for
	`
	return r.list(ctx, query, bookingID)
}

// GetByID получает напоминание по ID
func (r *ReminderRepository) GetByID(ctx context.Context, id int64) (*model.ReminderEvent, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminder_events WHERE id = $1`

	event, err := scanReminder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return event, nil
}

// MarkSent помечает напоминание доставленным
func (r *ReminderRepository) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	affected, err := base.ExecAffected(ctx, r.db, `
		UPDATE reminder_events
		SET delivery_status = 'sent', attempts = attempts + 1, sent_at = $2, last_error = ''
		WHERE id = $1 AND delivery_status = 'pending'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return affected > 0, nil
}

// MarkAttemptFailed фиксирует неудачную попытку доставки.
// Счётчик и статус считаются в одном UPDATE по строке, а не по прочитанной ранее копии.
func (r *ReminderRepository) MarkAttemptFailed(ctx context.Context, id int64, reason string, maxAttempts int) (*model.ReminderEvent, error) {
	query := `
		UPDATE reminder_events
		SET attempts = attempts + 1,
		    last_error = $2,
		    delivery_status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE delivery_status END
		WHERE id = $1 AND delivery_status = 'pending'
		RETURNING ` + reminderColumns

	event, err := scanReminder(r.db.QueryRow(ctx, query, id, reason, maxAttempts))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark reminder failed: %w", err)
	}
	return event, nil
}

func (r *ReminderRepository) list(ctx context.Context, query string, args ...any) ([]*model.ReminderEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var events []*model.ReminderEvent
	for rows.Next() {
		event, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanReminder(row pgx.Row) (*model.ReminderEvent, error) {
	var e model.ReminderEvent
	err := row.Scan(
		&e.ID,
		&e.BookingID,
		&e.Type,
		&e.ScheduledFor,
		&e.DeliveryStatus,
		&e.Attempts,
		&e.LastError,
		&e.SentAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

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
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `
	id, payment_session_id, teacher_id, student_id, lesson_date::text, start_minute, end_minute,
	duration_minutes, timezone, starts_at, ends_at, location, amount_paid, discount, currency,
	payment_held, transfer_status, transfer_id, teacher_payout, platform_fee,
	teacher_approved, student_confirmed, teacher_approved_at, student_confirmed_at,
	cancelled_at, cancelled_by, cancel_reason, refund_percent, refund_amount, teacher_compensation,
	reschedule_proposal, created_at, updated_at`

type BookingRepository struct {
	pool *pgxpool.Pool
	bookingQueries
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{
		pool:           pool,
		bookingQueries: bookingQueries{db: pool},
	}
}

var (
	_ service.BookingStore = (*BookingRepository)(nil)
	_ service.BookingTx    = (*bookingTx)(nil)
)

// Atomically выполняет fn в транзакции с репозиториями, привязанными к ней
func (r *BookingRepository) Atomically(ctx context.Context, fn func(tx service.BookingTx) error) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&bookingTx{
			bookingQueries: bookingQueries{db: tx},
			reminders:      NewReminderRepository(tx),
			refunds:        NewCompensationRepository(tx),
		})
	})
}

// ListActiveByTeacherDate активные бронирования учителя на дату
func (r *BookingRepository) ListActiveByTeacherDate(ctx context.Context, teacherID int64, date string) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE teacher_id = $1 AND lesson_date = $2::date AND cancelled_at IS NULL
		ORDER BY start_minute
	`
	return r.list(ctx, query, teacherID, date)
}

// ListByUser бронирования, где пользователь учитель или студент
func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE teacher_id = $1 OR student_id = $1
		ORDER BY starts_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListUnsettled одобренные бронирования, выплата по которым не завершена
func (r *BookingRepository) ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'approved'
		  AND (transfer_status IN ('pending', 'failed')
		       OR (transfer_status = 'processing' AND updated_at < $1))
		ORDER BY updated_at
		LIMIT $2
	`
	return r.list(ctx, query, staleBefore, limit)
}

// bookingQueries запросы, общие для пула и транзакции
type bookingQueries struct {
	db base.DBTX
}

// GetByID получает бронирование по ID
func (q bookingQueries) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return q.get(ctx, query, id)
}

func (q bookingQueries) get(ctx context.Context, query string, args ...any) (*model.Booking, error) {
	booking, err := scanBooking(q.db.QueryRow(ctx, query, args...))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (q bookingQueries) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b          model.Booking
		start, end int
	)
	err := row.Scan(
		&b.ID,
		&b.PaymentSessionID,
		&b.TeacherID,
		&b.StudentID,
		&b.Date,
		&start,
		&end,
		&b.DurationMinutes,
		&b.Timezone,
		&b.StartsAt,
		&b.EndsAt,
		&b.Location,
		&b.AmountPaid,
		&b.Discount,
		&b.Currency,
		&b.PaymentHeld,
		&b.TransferStatus,
		&b.TransferID,
		&b.TeacherPayout,
		&b.PlatformFee,
		&b.TeacherApproved,
		&b.StudentConfirmed,
		&b.TeacherApprovedAt,
		&b.StudentConfirmedAt,
		&b.CancelledAt,
		&b.CancelledBy,
		&b.CancelReason,
		&b.RefundPercent,
		&b.RefundAmount,
		&b.TeacherCompensation,
		&b.Proposal,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.StartTime = model.FormatClock(start)
	b.EndTime = model.FormatClock(end)
	return &b, nil
}

// bookingTx операции внутри одной транзакции
type bookingTx struct {
	bookingQueries
	reminders *ReminderRepository
	refunds   *CompensationRepository
}

// LockTeacherDay берёт advisory lock на (учитель, дата) до конца транзакции
func (t *bookingTx) LockTeacherDay(ctx context.Context, teacherID int64, date string) error {
	key := fmt.Sprintf("%d:%s", teacherID, date)
	if _, err := t.db.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// GetForUpdate получает бронирование с блокировкой строки
func (t *bookingTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return t.get(ctx, query, id)
}

// GetByPaymentSession получает бронирование по платёжной сессии
func (t *bookingTx) GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_session_id = $1`
	return t.get(ctx, query, sessionID)
}

// FindOverlap ищет активное бронирование, пересекающее [start, end)
func (t *bookingTx) FindOverlap(ctx context.Context, teacherID int64, date string, start, end int, exclude uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE teacher_id = $1
		  AND lesson_date = $2::date
		  AND cancelled_at IS NULL
		  AND start_minute < $4
		  AND end_minute > $3
		  AND id <> $5
		LIMIT 1
	`
	return t.get(ctx, query, teacherID, date, start, end, exclude)
}

// Insert создаёт бронирование
func (t *bookingTx) Insert(ctx context.Context, b *model.Booking) error {
	start, end := b.Interval()
	query := `
		INSERT INTO bookings (
			id, payment_session_id, teacher_id, student_id, lesson_date, start_minute, end_minute,
			duration_minutes, timezone, starts_at, ends_at, location, amount_paid, discount, currency,
			payment_held, transfer_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := t.db.Exec(
		ctx, query,
		b.ID,
		b.PaymentSessionID,
		b.TeacherID,
		b.StudentID,
		b.Date,
		start,
		end,
		b.DurationMinutes,
		b.Timezone,
		b.StartsAt,
		b.EndsAt,
		b.Location,
		b.AmountPaid,
		b.Discount,
		b.Currency,
		b.PaymentHeld,
		string(b.TransferStatus),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("insert booking: %w", service.ErrDuplicateSession)
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	return nil
}

// Update сохраняет изменяемые поля бронирования. Статус вычисляется базой.
func (t *bookingTx) Update(ctx context.Context, b *model.Booking) error {
	start, end := b.Interval()
	query := `
		UPDATE bookings SET
			lesson_date = $2::date,
			start_minute = $3,
			end_minute = $4,
			starts_at = $5,
			ends_at = $6,
			payment_held = $7,
			transfer_status = $8,
			transfer_id = $9,
			teacher_payout = $10,
			platform_fee = $11,
			teacher_approved = $12,
			student_confirmed = $13,
			teacher_approved_at = $14,
			student_confirmed_at = $15,
			cancelled_at = $16,
			cancelled_by = $17,
			cancel_reason = $18,
			refund_percent = $19,
			refund_amount = $20,
			teacher_compensation = $21,
			reschedule_proposal = $22,
			updated_at = $23
		WHERE id = $1
	`

	affected, err := base.ExecAffected(
		ctx, t.db, query,
		b.ID,
		b.Date,
		start,
		end,
		b.StartsAt,
		b.EndsAt,
		b.PaymentHeld,
		string(b.TransferStatus),
		b.TransferID,
		b.TeacherPayout,
		b.PlatformFee,
		b.TeacherApproved,
		b.StudentConfirmed,
		b.TeacherApprovedAt,
		b.StudentConfirmedAt,
		b.CancelledAt,
		string(b.CancelledBy),
		b.CancelReason,
		b.RefundPercent,
		b.RefundAmount,
		b.TeacherCompensation,
		b.Proposal,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("booking %s not found", b.ID)
	}

	return nil
}

func (t *bookingTx) InsertReminders(ctx context.Context, events []*model.ReminderEvent) error {
	return t.reminders.InsertBatch(ctx, events)
}

func (t *bookingTx) PurgePendingReminders(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	return t.reminders.DeletePending(ctx, bookingID)
}

func (t *bookingTx) FlagCompensation(ctx context.Context, refund *model.CompensationRefund) (bool, error) {
	return t.refunds.Flag(ctx, refund)
}

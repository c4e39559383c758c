package service

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
)

// ErrDuplicateSession вставка бронирования с уже использованной сессией оплаты
var ErrDuplicateSession = errors.New("duplicate payment session")

// Clock источник текущего времени
type Clock func() time.Time

// BookingStore хранилище бронирований. Методы Get/List возвращают nil без
// ошибки, если запись не найдена.
type BookingStore interface {
	// Atomically выполняет fn в одной транзакции. Ошибка fn откатывает всё.
	Atomically(ctx context.Context, fn func(tx BookingTx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListActiveByTeacherDate(ctx context.Context, teacherID int64, date string) ([]*model.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Booking, error)
	// ListUnsettled одобренные бронирования без завершённой выплаты: pending и failed,
	// а также processing, захваченные раньше staleBefore
	ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]*model.Booking, error)
}

// BookingTx операции внутри транзакции
type BookingTx interface {
	// LockTeacherDay сериализует проверку и вставку для (учитель, дата) до конца транзакции
	LockTeacherDay(ctx context.Context, teacherID int64, date string) error
	// GetForUpdate блокирует строку бронирования до конца транзакции
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error)
	// FindOverlap ищет активное бронирование учителя на дату, пересекающее [start, end)
	FindOverlap(ctx context.Context, teacherID int64, date string, start, end int, exclude uuid.UUID) (*model.Booking, error)
	Insert(ctx context.Context, booking *model.Booking) error
	Update(ctx context.Context, booking *model.Booking) error
	InsertReminders(ctx context.Context, events []*model.ReminderEvent) error
	PurgePendingReminders(ctx context.Context, bookingID uuid.UUID) (int64, error)
	// FlagCompensation сохраняет возврат; false если для сессии он уже был
	FlagCompensation(ctx context.Context, refund *model.CompensationRefund) (bool, error)
}

// ReminderStore хранилище напоминаний
type ReminderStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ReminderEvent, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.ReminderEvent, error)
	GetByID(ctx context.Context, id int64) (*model.ReminderEvent, error)
	// MarkSent закрывает напоминание как доставленное; false если оно уже не pending
	MarkSent(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkAttemptFailed увеличивает счётчик попыток одной операцией и переводит в failed,
	// когда попыток стало maxAttempts. Возвращает обновлённое напоминание, nil если оно уже не pending.
	MarkAttemptFailed(ctx context.Context, id int64, reason string, maxAttempts int) (*model.ReminderEvent, error)
}

// UserStore хранилище пользователей
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateAvailability(ctx context.Context, userID int64, availability model.WeeklyAvailability) error
	ListTeachers(ctx context.Context) ([]*model.User, error)
}

// SlotCache кэш сгенерированных слотов с поколением на (учитель, дата).
// Get отдаёт текущее поколение и при промахе. Set пишет слоты в поколение gen:
// если Invalidate успел сменить поколение, записанное никто не прочитает.
type SlotCache interface {
	Get(ctx context.Context, teacherID int64, date string, duration int) (slots []model.Slot, gen int64, ok bool, err error)
	Set(ctx context.Context, teacherID int64, date string, duration int, gen int64, slots []model.Slot) error
	Invalidate(ctx context.Context, teacherID int64, date string) error
}

// EventPublisher исходящие события для платёжного шлюза и аналитики
type EventPublisher interface {
	PublishBookingCancelled(ctx context.Context, event model.BookingCancelledEvent) error
	PublishRefundRequested(ctx context.Context, refund model.CompensationRefund) error
	PublishBookingApproved(ctx context.Context, event model.BookingApprovedEvent) error
}

// Payouter переводит долю учителя. Повтор с тем же IdempotencyKey не создаёт второй перевод.
type Payouter interface {
	Transfer(ctx context.Context, req model.PayoutRequest) (string, error)
}

// ReminderSender доставляет напоминание участникам
type ReminderSender interface {
	SendReminder(ctx context.Context, event *model.ReminderEvent, booking *model.Booking) error
}

// NopPublisher ничего не публикует
type NopPublisher struct{}

func (NopPublisher) PublishBookingCancelled(context.Context, model.BookingCancelledEvent) error {
	return nil
}

func (NopPublisher) PublishRefundRequested(context.Context, model.CompensationRefund) error {
	return nil
}

func (NopPublisher) PublishBookingApproved(context.Context, model.BookingApprovedEvent) error {
	return nil
}

// NopSlotCache кэш, который ничего не хранит
type NopSlotCache struct{}

func (NopSlotCache) Get(context.Context, int64, string, int) ([]model.Slot, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopSlotCache) Set(context.Context, int64, string, int, int64, []model.Slot) error {
	return nil
}

func (NopSlotCache) Invalidate(context.Context, int64, string) error {
	return nil
}

// Package memory хранилище в памяти с теми же гарантиями, что и Postgres:
// транзакции сериализуются одним мьютексом и откатываются целиком при ошибке.
package memory

import (
	"sort"
	"sync"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/google/uuid"
)

type Store struct {
	mu         sync.Mutex
	state      *state
	users      map[int64]*model.User
	nextUserID int64
}

type state struct {
	bookings       map[uuid.UUID]*model.Booking
	reminders      map[int64]*model.ReminderEvent
	refunds        map[string]*model.CompensationRefund
	nextReminderID int64
	nextRefundID   int64
}

func NewStore() *Store {
	return &Store{
		state: &state{
			bookings:  make(map[uuid.UUID]*model.Booking),
			reminders: make(map[int64]*model.ReminderEvent),
			refunds:   make(map[string]*model.CompensationRefund),
		},
		users: make(map[int64]*model.User),
	}
}

// Bookings хранилище бронирований поверх общего состояния
func (s *Store) Bookings() *Bookings {
	return &Bookings{store: s}
}

// Reminders хранилище напоминаний поверх общего состояния
func (s *Store) Reminders() *Reminders {
	return &Reminders{store: s}
}

// Users хранилище пользователей
func (s *Store) Users() *Users {
	return &Users{store: s}
}

// Refunds возвраты за конфликтные оплаты
func (s *Store) Refunds() []model.CompensationRefund {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.CompensationRefund, 0, len(s.state.refunds))
	for _, r := range s.state.refunds {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// BookingCount сколько бронирований всего, включая отменённые
func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.bookings)
}

func (s *state) clone() *state {
	c := &state{
		bookings:       make(map[uuid.UUID]*model.Booking, len(s.bookings)),
		reminders:      make(map[int64]*model.ReminderEvent, len(s.reminders)),
		refunds:        make(map[string]*model.CompensationRefund, len(s.refunds)),
		nextReminderID: s.nextReminderID,
		nextRefundID:   s.nextRefundID,
	}
	for id, b := range s.bookings {
		c.bookings[id] = b.Clone()
	}
	for id, r := range s.reminders {
		c.reminders[id] = cloneReminder(r)
	}
	for id, r := range s.refunds {
		v := *r
		c.refunds[id] = &v
	}
	return c
}

func cloneReminder(r *model.ReminderEvent) *model.ReminderEvent {
	v := *r
	if r.SentAt != nil {
		at := *r.SentAt
		v.SentAt = &at
	}
	return &v
}

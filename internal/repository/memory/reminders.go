package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
)

type Reminders struct {
	store *Store
}

var _ service.ReminderStore = (*Reminders)(nil)

func (r *Reminders) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.ReminderEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := r.filter(func(e *model.ReminderEvent) bool {
		return e.DeliveryStatus == model.DeliveryStatusPending && !e.ScheduledFor.After(now)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *Reminders) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.ReminderEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.filter(func(e *model.ReminderEvent) bool {
		return e.BookingID == bookingID
	}), nil
}

func (r *Reminders) GetByID(ctx context.Context, id int64) (*model.ReminderEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if e, ok := r.store.state.reminders[id]; ok {
		return cloneReminder(e), nil
	}
	return nil, nil
}

func (r *Reminders) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	updated, err := r.update(id, func(e *model.ReminderEvent) {
		e.Attempts++
		e.DeliveryStatus = model.DeliveryStatusSent
		e.SentAt = &at
		e.LastError = ""
	})
	return updated != nil, err
}

func (r *Reminders) MarkAttemptFailed(ctx context.Context, id int64, reason string, maxAttempts int) (*model.ReminderEvent, error) {
	return r.update(id, func(e *model.ReminderEvent) {
		e.Attempts++
		e.LastError = reason
		if e.Attempts >= maxAttempts {
			e.DeliveryStatus = model.DeliveryStatusFailed
		}
	})
}

// update меняет только напоминания в статусе pending, nil если статус уже другой
func (r *Reminders) update(id int64, apply func(e *model.ReminderEvent)) (*model.ReminderEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.state.reminders[id]
	if !ok {
		return nil, fmt.Errorf("reminder %d not found", id)
	}
	if e.DeliveryStatus != model.DeliveryStatusPending {
		return nil, nil
	}
	apply(e)
	return cloneReminder(e), nil
}

func (r *Reminders) filter(match func(e *model.ReminderEvent) bool) []*model.ReminderEvent {
	var result []*model.ReminderEvent
	for _, e := range r.store.state.reminders {
		if match(e) {
			result = append(result, cloneReminder(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ScheduledFor.Equal(result[j].ScheduledFor) {
			return result[i].ID < result[j].ID
		}
		return result[i].ScheduledFor.Before(result[j].ScheduledFor)
	})
	return result
}

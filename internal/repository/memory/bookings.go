package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/google/uuid"
)

type Bookings struct {
	store *Store
}

var _ service.BookingStore = (*Bookings)(nil)

// Atomically выполняет fn над копией состояния и подменяет состояние только при успехе
func (b *Bookings) Atomically(ctx context.Context, fn func(tx service.BookingTx) error) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	staged := b.store.state.clone()
	if err := fn(&tx{state: staged}); err != nil {
		return err
	}
	b.store.state = staged
	return nil
}

func (b *Bookings) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if booking, ok := b.store.state.bookings[id]; ok {
		return booking.Clone(), nil
	}
	return nil, nil
}

func (b *Bookings) ListActiveByTeacherDate(ctx context.Context, teacherID int64, date string) ([]*model.Booking, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	return filterBookings(b.store.state, func(booking *model.Booking) bool {
		return booking.TeacherID == teacherID && booking.Date == date && booking.IsActive()
	}), nil
}

func (b *Bookings) ListByUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	result := filterBookings(b.store.state, func(booking *model.Booking) bool {
		return booking.TeacherID == userID || booking.StudentID == userID
	})
	// Как в Postgres: новые уроки первыми
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartsAt.After(result[j].StartsAt)
	})
	return result, nil
}

func (b *Bookings) ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]*model.Booking, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	result := filterBookings(b.store.state, func(booking *model.Booking) bool {
		if booking.Status() != model.BookingStatusApproved {
			return false
		}
		switch booking.TransferStatus {
		case model.TransferStatusPending, model.TransferStatusFailed:
			return true
		case model.TransferStatusProcessing:
			return booking.UpdatedAt.Before(staleBefore)
		}
		return false
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func filterBookings(s *state, match func(b *model.Booking) bool) []*model.Booking {
	var result []*model.Booking
	for _, b := range s.bookings {
		if match(b) {
			result = append(result, b.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartsAt.Equal(result[j].StartsAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].StartsAt.Before(result[j].StartsAt)
	})
	return result
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
)

type Users struct {
	store *Store
}

var _ service.UserStore = (*Users)(nil)

func (u *Users) Create(ctx context.Context, user *model.User) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, existing := range u.store.users {
		if existing.TelegramID != 0 && existing.TelegramID == user.TelegramID {
			return fmt.Errorf("user with telegram id %d already exists", user.TelegramID)
		}
	}

	u.store.nextUserID++
	user.ID = u.store.nextUserID
	u.store.users[user.ID] = cloneUser(user)
	return nil
}

func (u *Users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if user, ok := u.store.users[id]; ok {
		return cloneUser(user), nil
	}
	return nil, nil
}

func (u *Users) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, user := range u.store.users {
		if user.TelegramID == telegramID {
			return cloneUser(user), nil
		}
	}
	return nil, nil
}

func (u *Users) Update(ctx context.Context, user *model.User) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	existing, ok := u.store.users[user.ID]
	if !ok {
		return fmt.Errorf("user %d not found", user.ID)
	}
	// Расписание меняется только через UpdateAvailability, как и в Postgres
	updated := cloneUser(user)
	updated.Availability = existing.Availability
	u.store.users[user.ID] = updated
	return nil
}

func (u *Users) UpdateAvailability(ctx context.Context, userID int64, availability model.WeeklyAvailability) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	user, ok := u.store.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	user.Availability = cloneAvailability(availability)
	return nil
}

func (u *Users) ListTeachers(ctx context.Context) ([]*model.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	var teachers []*model.User
	for _, user := range u.store.users {
		if user.IsTeacher {
			teachers = append(teachers, cloneUser(user))
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	return teachers, nil
}

func cloneUser(user *model.User) *model.User {
	c := *user
	c.Availability = cloneAvailability(user.Availability)
	return &c
}

func cloneAvailability(a model.WeeklyAvailability) model.WeeklyAvailability {
	if a == nil {
		return nil
	}
	c := make(model.WeeklyAvailability, len(a))
	for day, windows := range a {
		c[day] = append([]model.TimeWindow(nil), windows...)
	}
	return c
}

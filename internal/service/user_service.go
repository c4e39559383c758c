package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"go.uber.org/zap"
)

type UserService struct {
	users  UserStore
	cache  SlotCache
	logger *zap.Logger
	now    Clock
}

func NewUserService(users UserStore, cache SlotCache, logger *zap.Logger, now Clock) *UserService {
	if cache == nil {
		cache = NopSlotCache{}
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:  users,
		cache:  cache,
		logger: logger,
		now:    now,
	}
}

// RegisterUser регистрирует или обновляет пользователя
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		existingUser.LanguageCode = languageCode

		if err := s.users.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		return existingUser, nil
	}

	// Создаём нового пользователя
	user := &model.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		LanguageCode: languageCode,
		Timezone:     "UTC",
		Availability: model.WeeklyAvailability{},
		CreatedAt:    s.now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListTeachers все учителя
func (s *UserService) ListTeachers(ctx context.Context) ([]*model.User, error) {
	return s.users.ListTeachers(ctx)
}

// MakeTeacher делает пользователя учителем
func (s *UserService) MakeTeacher(ctx context.Context, userID int64, timezone string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFoundError("user %d not found", userID)
	}

	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, validationError("unknown timezone %q", timezone)
		}
		user.Timezone = timezone
	}

	user.IsTeacher = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("User became teacher",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("timezone", user.Timezone),
	)

	return user, nil
}

// SetPayoutAccount привязывает счёт для выплат
func (s *UserService) SetPayoutAccount(ctx context.Context, userID int64, accountID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return notFoundError("user %d not found", userID)
	}
	if accountID == "" {
		return validationError("payout account is required")
	}

	user.PayoutAccountID = accountID
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetAvailability заменяет недельное расписание учителя.
// Уже созданные бронирования не затрагиваются.
func (s *UserService) SetAvailability(ctx context.Context, teacherID int64, availability model.WeeklyAvailability) error {
	if err := availability.Validate(); err != nil {
		return validationError("%s", err.Error())
	}

	user, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return notFoundError("user %d not found", teacherID)
	}
	if !user.IsTeacher {
		return forbiddenError("user %d is not a teacher", teacherID)
	}

	if err := s.users.UpdateAvailability(ctx, teacherID, availability); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}

	// Кэш слотов зависит от расписания, сбрасываем ближайшие даты
	loc := user.Location()
	today := s.now().In(loc)
	for i := 0; i < availabilityHorizonDays; i++ {
		date := today.AddDate(0, 0, i).Format(model.DateLayout)
		if err := s.cache.Invalidate(ctx, teacherID, date); err != nil {
			s.logger.Warn("Failed to invalidate slot cache", zap.Int64("teacher_id", teacherID), zap.Error(err))
			break
		}
	}

	s.logger.Info("Availability updated",
		zap.Int64("teacher_id", teacherID),
		zap.Int("days", len(availability)),
	)

	return nil
}

package model

import "time"

type User struct {
	ID              int64              `json:"id"`
	TelegramID      int64              `json:"telegram_id"`
	Username        string             `json:"username"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	LanguageCode    string             `json:"language_code"`
	IsTeacher       bool               `json:"is_teacher"`
	Timezone        string             `json:"timezone"`          // IANA, например "Europe/Moscow"
	PayoutAccountID string             `json:"payout_account_id"` // Stripe connected account учителя
	Availability    WeeklyAvailability `json:"availability"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Location возвращает часовой пояс пользователя, UTC если не задан или не распознан
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DisplayName возвращает имя для сообщений
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay верхняя граница окна. Конец "00:00" читается как полночь в конце дня.
const MinutesPerDay = 24 * 60

// TimeWindow окно доступности в формате HH:MM, 24ч
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyAvailability окна по дню недели в нижнем регистре ("monday")
type WeeklyAvailability map[string][]TimeWindow

// Bounds границы окна в минутах от полуночи
func (w TimeWindow) Bounds() (start, end int, err error) {
	start, err = ParseClock(w.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("window start: %w", err)
	}
	end, err = ParseClock(w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("window end: %w", err)
	}
	if end == 0 {
		end = MinutesPerDay
	}
	if start >= end {
		return 0, 0, fmt.Errorf("window %s-%s is empty", w.Start, w.End)
	}
	return start, end, nil
}

func (a WeeklyAvailability) Windows(day time.Weekday) []TimeWindow {
	return a[WeekdayKey(day)]
}

// Validate проверяет дни недели и все окна
func (a WeeklyAvailability) Validate() error {
	for day, windows := range a {
		if _, ok := weekdayByKey[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, w := range windows {
			if _, _, err := w.Bounds(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

var weekdayByKey = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseClock разбирает "HH:MM" в минуты от полуночи
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// FormatClock минуты от полуночи в "HH:MM", 1440 даёт "00:00"
func FormatClock(minutes int) string {
	minutes %= MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DateLayout формат даты урока
const DateLayout = "2006-01-02"

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// LessonInstant момент времени для даты и минут от полуночи в часовом поясе loc
func LessonInstant(date string, minutes int, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

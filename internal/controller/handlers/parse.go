package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

var dayAliases = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday, "пн": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "вт": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "ср": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "чт": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "пт": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "сб": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday, "вс": time.Sunday,
}

// parseAvailability разбирает "mon 09:00-12:00 14:00-18:00; wed 10:00-13:00".
// Дни, которых нет в тексте, остаются без окон.
func parseAvailability(text string) (model.WeeklyAvailability, error) {
	availability := model.WeeklyAvailability{}

	for _, part := range strings.Split(text, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}

		day, ok := dayAliases[strings.ToLower(fields[0])]
		if !ok {
			return nil, fmt.Errorf("неизвестный день %q", fields[0])
		}
		if len(fields) == 1 {
			return nil, fmt.Errorf("для %s не указано время", fields[0])
		}

		key := model.WeekdayKey(day)
		for _, rng := range fields[1:] {
			bounds := strings.Split(rng, "-")
			if len(bounds) != 2 {
				return nil, fmt.Errorf("интервал %q должен быть в формате ЧЧ:ММ-ЧЧ:ММ", rng)
			}
			window := model.TimeWindow{Start: bounds[0], End: bounds[1]}
			if _, _, err := window.Bounds(); err != nil {
				return nil, fmt.Errorf("интервал %q: %w", rng, err)
			}
			availability[key] = append(availability[key], window)
		}
	}

	if len(availability) == 0 {
		return nil, fmt.Errorf("расписание пустое")
	}
	return availability, nil
}

// parseReschedule разбирает "2026-03-10 14:30 причина"
func parseReschedule(text string) (date, start, reason string, err error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", "", "", fmt.Errorf("укажите дату и время: ГГГГ-ММ-ДД ЧЧ:ММ")
	}
	if _, err := model.ParseDate(fields[0], time.UTC); err != nil {
		return "", "", "", fmt.Errorf("дата %q должна быть в формате ГГГГ-ММ-ДД", fields[0])
	}
	if _, err := model.ParseClock(fields[1]); err != nil {
		return "", "", "", fmt.Errorf("время %q должно быть в формате ЧЧ:ММ", fields[1])
	}
	return fields[0], fields[1], strings.Join(fields[2:], " "), nil
}

package service

import (
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

// SlotGranularity шаг перебора кандидатов в минутах
const SlotGranularity = 15

// AllowedDurations допустимые длительности урока в минутах
var AllowedDurations = []int{15, 30, 45, 60}

// ValidDuration проверяет что длительность из допустимого набора
func ValidDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Interval полуоткрытый интервал [Start, End) в минутах от полуночи
type Interval struct {
	Start int
	End   int
}

// Overlaps проверяет пересечение полуоткрытых интервалов
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// GenerateSlots строит список стартов для даты по недельному расписанию учителя.
// Кандидаты, пересекающиеся с booked, помечаются taken. Кандидаты с началом не
// позже now отбрасываются для любой даты, не только для сегодняшней: на прошедшую
// дату список пуст. Результат отсортирован и без дублей по началу.
// Функция чистая: одинаковые входные данные дают одинаковый результат.
func GenerateSlots(
	availability model.WeeklyAvailability,
	date string,
	duration int,
	booked []Interval,
	now time.Time,
	loc *time.Location,
) ([]model.Slot, error) {
	if !ValidDuration(duration) {
		return nil, validationError("duration %d is not one of %v", duration, AllowedDurations)
	}
	if loc == nil {
		loc = time.UTC
	}

	day, err := model.ParseDate(date, loc)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	byStart := make(map[int]model.Slot)
	for _, window := range availability.Windows(day.Weekday()) {
		windowStart, windowEnd, err := window.Bounds()
		if err != nil {
			return nil, validationError("availability %s: %s", model.WeekdayKey(day.Weekday()), err.Error())
		}

		for start := windowStart; start+duration <= windowEnd; start += SlotGranularity {
			if _, seen := byStart[start]; seen {
				continue
			}

			instant := time.Date(day.Year(), day.Month(), day.Day(), start/60, start%60, 0, 0, loc)
			if !instant.After(now) {
				continue
			}

			end := start + duration
			taken := false
			for _, b := range booked {
				if Overlaps(start, end, b.Start, b.End) {
					taken = true
					break
				}
			}

			byStart[start] = model.Slot{
				Start:       model.FormatClock(start),
				End:         model.FormatClock(end),
				Taken:       taken,
				StartMinute: start,
			}
		}
	}

	slots := make([]model.Slot, 0, len(byStart))
	for _, s := range byStart {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartMinute < slots[j].StartMinute
	})

	return slots, nil
}

// bookedIntervals собирает интервалы активных бронирований
func bookedIntervals(bookings []*model.Booking) []Interval {
	intervals := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		start, end := b.Interval()
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals
}

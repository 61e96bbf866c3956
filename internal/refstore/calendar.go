package refstore

import (
	"time"

	"metrotrack/internal/domain"
)

// OperatingDayStartHour is the hour an operating day begins. Trains running
// after midnight belong to the previous day's timetable.
const OperatingDayStartHour = 4

// OperatingDate returns the calendar date, at midnight in t's location, of
// the operating day t falls in.
func OperatingDate(t time.Time) time.Time {
	if t.Hour() < OperatingDayStartHour {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HolidayKey formats a date the way holiday_list stores it.
func HolidayKey(date time.Time) string {
	return date.Format("20060102")
}

// ClassifyDay is the pure part of the calendar resolver: given the operating
// date and whether it is a listed holiday, pick the day type.
func ClassifyDay(date time.Time, holiday bool) domain.DayType {
	if holiday {
		return domain.DayTypeWeekendOrHoliday
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return domain.DayTypeWeekendOrHoliday
	default:
		return domain.DayTypeWeekday
	}
}

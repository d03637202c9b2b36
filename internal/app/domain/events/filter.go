package events

import (
	"time"
)

// Named feed filters. Anything else is treated as a category tag.
const (
	FilterAll         = "All"
	FilterThisWeekend = "This Weekend"
	FilterNextWeek    = "Next Week"
)

// Filter is the parsed feed filter: either a date window, a category tag,
// or neither (All).
type Filter struct {
	Raw      string
	Category string
	Start    *time.Time
	End      *time.Time
}

// ParseFilter resolves the raw filter string against the given clock time.
func ParseFilter(raw string, now time.Time) Filter {
	switch raw {
	case "", FilterAll:
		return Filter{Raw: FilterAll}
	case FilterThisWeekend:
		start, end := CurrentWeekendWindow(now)
		return Filter{Raw: raw, Start: &start, End: &end}
	case FilterNextWeek:
		start, end := NextWeekWindow(now)
		return Filter{Raw: raw, Start: &start, End: &end}
	default:
		return Filter{Raw: raw, Category: raw}
	}
}

// CurrentWeekendWindow returns the [start, end] bounds for "This Weekend".
// On a Sunday the window is the rest of today; on a Saturday it runs
// through the end of tomorrow; otherwise it spans the upcoming Saturday
// through Sunday.
func CurrentWeekendWindow(now time.Time) (time.Time, time.Time) {
	switch now.Weekday() {
	case time.Sunday:
		return now, endOfDay(now)
	case time.Saturday:
		return now, endOfDay(now.AddDate(0, 0, 1))
	default:
		daysUntilSaturday := int(time.Saturday - now.Weekday())
		saturday := startOfDay(now.AddDate(0, 0, daysUntilSaturday))
		sunday := endOfDay(saturday.AddDate(0, 0, 1))
		return saturday, sunday
	}
}

// NextWeekWindow returns the [start, end] bounds for "Next Week": next
// Monday 00:00 through the following Sunday 23:59:59.999. "Next Monday"
// is tomorrow when today is Sunday, else today + (8 - day number) with
// Sunday counted as day 0.
func NextWeekWindow(now time.Time) (time.Time, time.Time) {
	var daysUntilMonday int
	if now.Weekday() == time.Sunday {
		daysUntilMonday = 1
	} else {
		daysUntilMonday = 8 - int(now.Weekday())
	}
	monday := startOfDay(now.AddDate(0, 0, daysUntilMonday))
	sunday := endOfDay(monday.AddDate(0, 0, 6))
	return monday, sunday
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

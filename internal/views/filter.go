package views

import (
	"slices"
	"strings"
	"time"

	"kairon/backend"
)

// Filter returns the tasks matching every criterion, ordered by c.Sort.
// Calendar comparisons use now's location.
func Filter(tasks []backend.Task, c Criteria, now time.Time) []backend.Task {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	if search == AllSentinel {
		search = ""
	}

	var out []backend.Task
	for _, t := range tasks {
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		if !disabled(c.Category) && t.Category != c.Category {
			continue
		}
		if !disabled(c.Priority) && string(t.Priority) != c.Priority {
			continue
		}
		if !disabled(c.Tag) && !slices.Contains(t.Tags, c.Tag) {
			continue
		}
		if !inWindow(t, c.Window, now) {
			continue
		}
		out = append(out, t)
	}
	return Sort(out, c.Sort)
}

func inWindow(t backend.Task, w Window, now time.Time) bool {
	switch w {
	case WindowToday:
		return SameDay(t.Due, now)
	case WindowWeek:
		start, end := WeekBounds(now)
		due := t.Due.In(now.Location())
		return !due.Before(start) && due.Before(end)
	case WindowOverdue:
		return IsOverdue(t, now)
	default:
		return true
	}
}

// IsOverdue reports whether an active task's due instant has passed.
func IsOverdue(t backend.Task, now time.Time) bool {
	return t.IsActive() && t.Due.Before(now)
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekBounds returns [Sunday 00:00, next Sunday 00:00) around now.
func WeekBounds(now time.Time) (time.Time, time.Time) {
	start := StartOfDay(now).AddDate(0, 0, -int(now.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

// Overdue returns active tasks whose due instant is before now, oldest first.
func Overdue(tasks []backend.Task, now time.Time) []backend.Task {
	return Filter(tasks, Criteria{Window: WindowOverdue}, now)
}

// DueToday returns active tasks due on now's calendar day, including those
// already overdue earlier today.
func DueToday(tasks []backend.Task, now time.Time) []backend.Task {
	var out []backend.Task
	for _, t := range Filter(tasks, Criteria{Window: WindowToday}, now) {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

// ThisWeek returns tasks due in the current Sunday-started week.
func ThisWeek(tasks []backend.Task, now time.Time) []backend.Task {
	return Filter(tasks, Criteria{Window: WindowWeek}, now)
}

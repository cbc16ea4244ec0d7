// Package calendar projects tasks onto calendar events and exports them as
// iCalendar (RFC 5545) data.
package calendar

import (
	"time"

	"kairon/backend"
	"kairon/internal/theme"
)

// Event is a task placed on a calendar.
type Event struct {
	TaskID      int64     `json:"taskId"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	Color       string    `json:"color"`
	BorderColor string    `json:"borderColor"`
	Completed   bool      `json:"completed"`
}

// Project turns every task into an event. Completed tasks are green; the
// rest use the theme colour's gradient.
func Project(tasks []backend.Task, themeColor string) []Event {
	accent := theme.Accent(themeColor)
	events := make([]Event, 0, len(tasks))
	for _, t := range tasks {
		e := Event{
			TaskID:      t.ID,
			Title:       t.Title,
			Start:       t.Due,
			Color:       accent.From,
			BorderColor: accent.To,
		}
		if !t.IsActive() {
			e.Color, e.BorderColor, e.Completed = theme.Completed.From, theme.Completed.To, true
		}
		events = append(events, e)
	}
	return events
}

// Month returns the events starting in the calendar month containing day,
// using day's location.
func Month(events []Event, day time.Time) []Event {
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 1, 0)
	var out []Event
	for _, e := range events {
		at := e.Start.In(day.Location())
		if !at.Before(start) && at.Before(end) {
			out = append(out, e)
		}
	}
	return out
}

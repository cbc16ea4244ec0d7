package views

import (
	"fmt"
	"slices"
	"time"

	"kairon/backend"
)

// Categories returns the distinct categories in first-seen order.
func Categories(tasks []backend.Task) []string {
	var out []string
	for _, t := range tasks {
		if t.Category != "" && !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	return out
}

// Tags returns the distinct tags in first-seen order.
func Tags(tasks []backend.Task) []string {
	var out []string
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if !slices.Contains(out, tag) {
				out = append(out, tag)
			}
		}
	}
	return out
}

// OverdueLabel describes how long ago due was, e.g. "3 days overdue".
func OverdueLabel(due, now time.Time) string {
	elapsed := now.Sub(due)
	units := []struct {
		name string
		size time.Duration
	}{
		{"year", 365 * 24 * time.Hour},
		{"month", 30 * 24 * time.Hour},
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"min", time.Minute},
	}
	for _, u := range units {
		if n := int(elapsed / u.size); n >= 1 {
			if n == 1 {
				return fmt.Sprintf("1 %s overdue", u.name)
			}
			return fmt.Sprintf("%d %ss overdue", n, u.name)
		}
	}
	return "Just now overdue"
}

// Progress summarizes a task's checklist.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// SubtaskProgress counts finished checklist items.
func SubtaskProgress(t backend.Task) Progress {
	p := Progress{Total: len(t.Subtasks)}
	for _, s := range t.Subtasks {
		if s.Completed {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Percent = p.Done * 100 / p.Total
	}
	return p
}

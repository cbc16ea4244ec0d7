package backend

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists valid priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Rank orders priorities; unknown values rank below low.
func (p Priority) Rank() int {
	return slices.Index(Priorities, p)
}

// Recurrence is a descriptive repeat rule. Nothing generates instances from it.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Recurrences lists valid recurrence values.
var Recurrences = []Recurrence{RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusActive    TaskStatus = "active"
	StatusCompleted TaskStatus = "completed"
)

// Categories are the suggested task categories. Other labels are accepted.
var Categories = []string{"Work", "Personal", "Shopping", "Health", "Other"}

// Subtask is a checklist item inside a task.
type Subtask struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task is a unit of work with a due moment.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Priority    Priority   `json:"priority"`
	Due         time.Time  `json:"dueDateTime"`
	Recurrence  Recurrence `json:"recurrence"`
	Tags        []string   `json:"tags"`
	Notes       string     `json:"notes"`
	Subtasks    []Subtask  `json:"subtasks"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Position    int        `json:"position"`
}

// IsActive reports whether the task is still open.
func (t Task) IsActive() bool {
	return t.Status == StatusActive
}

// Clone returns a deep copy so callers can mutate slices freely.
func (t Task) Clone() Task {
	c := t
	c.Tags = slices.Clone(t.Tags)
	c.Subtasks = slices.Clone(t.Subtasks)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return c
}

// Validate checks the record invariants of a task.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if t.Due.IsZero() {
		return &ValidationError{Field: "dueDateTime", Message: "is required"}
	}
	if t.Priority.Rank() < 0 {
		return &ValidationError{Field: "priority", Message: "must be one of low, medium, high"}
	}
	if !slices.Contains(Recurrences, t.Recurrence) {
		return &ValidationError{Field: "recurrence", Message: "must be one of none, daily, weekly, monthly"}
	}
	switch t.Status {
	case StatusActive:
		if t.CompletedAt != nil {
			return &ValidationError{Field: "completedAt", Message: "must be empty while active"}
		}
	case StatusCompleted:
		if t.CompletedAt == nil {
			return &ValidationError{Field: "completedAt", Message: "is required once completed"}
		}
		if t.CompletedAt.Before(t.CreatedAt) {
			return &ValidationError{Field: "completedAt", Message: "must not precede createdAt"}
		}
	default:
		return &ValidationError{Field: "status", Message: "must be active or completed"}
	}
	for i, s := range t.Subtasks {
		if strings.TrimSpace(s.Text) == "" {
			return &ValidationError{Field: "subtasks", Message: "item " + strconv.Itoa(i+1) + " has no text"}
		}
	}
	return nil
}

// Interest is a free-form topic the user tracks.
type Interest struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate checks that the interest has a title.
func (i Interest) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	return nil
}

package views

import (
	"fmt"
	"io"
	"strings"
	"time"

	"kairon/backend"
)

// Column is one rendered task attribute.
type Column struct {
	Name     string
	Width    int
	Truncate bool
}

// DefaultColumns is the column set of `kairon list`.
var DefaultColumns = []Column{
	{Name: "id", Width: 5},
	{Name: "status", Width: 6},
	{Name: "priority", Width: 8},
	{Name: "title", Width: 36, Truncate: true},
	{Name: "due", Width: 16},
	{Name: "category", Width: 10},
	{Name: "tags"},
}

// Renderer writes tasks as aligned text lines with checklist items nested
// beneath their task.
type Renderer struct {
	columns []Column
	writer  io.Writer
	now     time.Time
}

// NewRenderer creates a renderer. now is used for overdue markers.
func NewRenderer(writer io.Writer, now time.Time, columns ...Column) *Renderer {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &Renderer{columns: columns, writer: writer, now: now}
}

// Render writes one line per task plus one per subtask.
func (r *Renderer) Render(tasks []backend.Task) {
	for _, t := range tasks {
		var parts []string
		for _, col := range r.columns {
			parts = append(parts, r.formatColumn(t, col))
		}
		_, _ = fmt.Fprintf(r.writer, "  %s\n", strings.TrimRight(strings.Join(parts, " "), " "))

		for i, s := range t.Subtasks {
			treeChar := "├─"
			if i == len(t.Subtasks)-1 {
				treeChar = "└─"
			}
			box := "[ ]"
			if s.Completed {
				box = "[x]"
			}
			_, _ = fmt.Fprintf(r.writer, "        %s %s %s\n", treeChar, box, s.Text)
		}
	}
}

func (r *Renderer) formatColumn(t backend.Task, col Column) string {
	var value string

	switch col.Name {
	case "id":
		value = fmt.Sprintf("#%d", t.ID)
	case "status":
		value = formatStatus(t, r.now)
	case "priority":
		value = "[" + string(t.Priority) + "]"
	case "title":
		value = t.Title
	case "due":
		value = t.Due.In(r.now.Location()).Format(DefaultDateFormat)
	case "category":
		value = t.Category
	case "tags":
		if len(t.Tags) > 0 {
			value = "{" + strings.Join(t.Tags, ", ") + "}"
		}
	case "notes":
		value = t.Notes
	case "recurrence":
		if t.Recurrence != backend.RecurrenceNone {
			value = string(t.Recurrence)
		}
	}

	if col.Width > 0 {
		if len(value) > col.Width && col.Truncate {
			value = value[:col.Width-3] + "..."
		}
		value = fmt.Sprintf("%-*s", col.Width, value)
	}
	return value
}

func formatStatus(t backend.Task, now time.Time) string {
	switch {
	case !t.IsActive():
		return "[DONE]"
	case IsOverdue(t, now):
		return "[LATE]"
	default:
		return "[TODO]"
	}
}

// Package markdown formats tasks as a markdown checklist, one section per
// category, with checklist items nested under their task.
package markdown

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"kairon/backend"
)

// DueFormat is how due moments appear after the @ marker.
const DueFormat = "2006-01-02 15:04"

// GroupByCategory returns category names in display order and the tasks of
// each, keeping the input order within a category. Uncategorised tasks land
// under "Other".
func GroupByCategory(tasks []backend.Task) ([]string, map[string][]backend.Task) {
	groups := make(map[string][]backend.Task)
	var names []string
	for _, t := range tasks {
		name := t.Category
		if name == "" {
			name = "Other"
		}
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
		groups[name] = append(groups[name], t)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return categoryRank(a) - categoryRank(b)
	})
	return names, groups
}

// categoryRank keeps the suggested categories first, in their usual order.
func categoryRank(name string) int {
	if i := slices.Index(backend.Categories, name); i >= 0 {
		return i
	}
	return len(backend.Categories)
}

// FormatStatusChar converts a task status to its checkbox character.
func FormatStatusChar(status backend.TaskStatus) string {
	if status == backend.StatusCompleted {
		return "x"
	}
	return " "
}

// FormatTaskText renders "Title !priority @due #tag" for one task.
func FormatTaskText(t *backend.Task, loc *time.Location) string {
	parts := []string{t.Title}
	if t.Priority != "" {
		parts = append(parts, "!"+string(t.Priority))
	}
	if !t.Due.IsZero() {
		parts = append(parts, "@"+t.Due.In(loc).Format(DueFormat))
	}
	for _, tag := range t.Tags {
		parts = append(parts, "#"+strings.ReplaceAll(tag, " ", "-"))
	}
	return strings.Join(parts, " ")
}

// WriteTask writes a task line followed by its indented checklist and notes.
func WriteTask(sb *strings.Builder, t *backend.Task, loc *time.Location) {
	sb.WriteString("- [")
	sb.WriteString(FormatStatusChar(t.Status))
	sb.WriteString("] ")
	sb.WriteString(FormatTaskText(t, loc))
	sb.WriteString("\n")

	for _, s := range t.Subtasks {
		box := " "
		if s.Completed {
			box = "x"
		}
		sb.WriteString("  - [" + box + "] " + s.Text + "\n")
	}
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		for _, line := range strings.Split(notes, "\n") {
			sb.WriteString("  > " + line + "\n")
		}
	}
}

// Write renders tasks as a markdown document titled with the export moment.
func Write(w io.Writer, tasks []backend.Task, now time.Time) error {
	var sb strings.Builder
	sb.WriteString("# Tasks\n\n")
	_, _ = fmt.Fprintf(&sb, "_Exported %s_\n", now.Format(DueFormat))

	names, groups := GroupByCategory(tasks)
	for _, name := range names {
		sb.WriteString("\n## " + name + "\n\n")
		for i := range groups[name] {
			WriteTask(&sb, &groups[name][i], now.Location())
		}
	}
	if len(tasks) == 0 {
		sb.WriteString("\nNo tasks.\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

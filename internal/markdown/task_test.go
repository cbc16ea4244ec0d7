package markdown

import (
	"strings"
	"testing"
	"time"

	"kairon/backend"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestFormatStatusChar(t *testing.T) {
	tests := []struct {
		name     string
		status   backend.TaskStatus
		expected string
	}{
		{"active", backend.StatusActive, " "},
		{"completed", backend.StatusCompleted, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatStatusChar(tt.status); got != tt.expected {
				t.Errorf("FormatStatusChar(%q) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestFormatTaskText(t *testing.T) {
	tests := []struct {
		name     string
		task     backend.Task
		expected string
	}{
		{
			name:     "title only",
			task:     backend.Task{Title: "Call mom"},
			expected: "Call mom",
		},
		{
			name: "all markers",
			task: backend.Task{
				Title:    "Ship release",
				Priority: backend.PriorityHigh,
				Due:      time.Date(2026, 3, 12, 17, 30, 0, 0, time.UTC),
				Tags:     []string{"work", "q1 goals"},
			},
			expected: "Ship release !high @2026-03-12 17:30 #work #q1-goals",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTaskText(&tt.task, time.UTC); got != tt.expected {
				t.Errorf("FormatTaskText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGroupByCategory(t *testing.T) {
	tasks := []backend.Task{
		{ID: 1, Title: "Hobby", Category: "Garden"},
		{ID: 2, Title: "Report", Category: "Work"},
		{ID: 3, Title: "Loose"},
		{ID: 4, Title: "Deck", Category: "Work"},
	}

	names, groups := GroupByCategory(tasks)

	want := []string{"Work", "Other", "Garden"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", names, want)
	}
	if len(groups["Work"]) != 2 || groups["Work"][0].ID != 2 || groups["Work"][1].ID != 4 {
		t.Errorf("Work group = %+v", groups["Work"])
	}
	if len(groups["Other"]) != 1 || groups["Other"][0].ID != 3 {
		t.Errorf("Other group = %+v", groups["Other"])
	}
}

func TestWrite(t *testing.T) {
	done := now
	tasks := []backend.Task{
		{
			Title:    "Pack bags",
			Category: "Personal",
			Priority: backend.PriorityMedium,
			Due:      time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC),
			Subtasks: []backend.Subtask{{Text: "passport", Completed: true}, {Text: "charger"}},
			Notes:    "check the weather\nbring snacks",
			Status:   backend.StatusActive,
		},
		{
			Title:       "Book flights",
			Category:    "Personal",
			Priority:    backend.PriorityHigh,
			Due:         time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
			Status:      backend.StatusCompleted,
			CompletedAt: &done,
		},
	}

	var sb strings.Builder
	if err := Write(&sb, tasks, now); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got := sb.String()

	for _, want := range []string{
		"# Tasks\n",
		"_Exported 2026-03-10 09:00_",
		"## Personal\n",
		"- [ ] Pack bags !medium @2026-03-11 08:00\n",
		"  - [x] passport\n",
		"  - [ ] charger\n",
		"  > check the weather\n  > bring snacks\n",
		"- [x] Book flights !high @2026-03-09 12:00\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, nil, now); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(sb.String(), "No tasks.") {
		t.Errorf("expected empty marker, got:\n%s", sb.String())
	}
}

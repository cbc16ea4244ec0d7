// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filter-then-pick task selection, a field-by-field add mode
// and yes/no confirmation over one shared input stream.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"kairon/backend"
	"kairon/internal/reminder"
	"kairon/internal/store"
	"kairon/internal/utils"
	"kairon/internal/views"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// Prompter reads answers line by line. A single scanner is shared so
// consecutive prompts do not lose buffered input.
type Prompter struct {
	scanner  *bufio.Scanner
	writer   io.Writer
	noPrompt bool
}

// New creates a Prompter. With noPrompt set every prompt fails with
// ErrNoPromptMode.
func New(r io.Reader, w io.Writer, noPrompt bool) *Prompter {
	if w == nil {
		w = io.Discard
	}
	return &Prompter{scanner: bufio.NewScanner(r), writer: w, noPrompt: noPrompt}
}

func (p *Prompter) ask(label string) (string, bool) {
	_, _ = fmt.Fprint(p.writer, label)
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// SelectTask asks for filter text and then a number. A single candidate,
// before or after filtering, is picked without asking.
func (p *Prompter) SelectTask(tasks []backend.Task, title string, now time.Time) (backend.Task, error) {
	if p.noPrompt {
		return backend.Task{}, ErrNoPromptMode
	}
	if len(tasks) == 0 {
		return backend.Task{}, ErrNoTasks
	}
	if len(tasks) == 1 {
		return tasks[0], nil
	}

	filter, ok := p.ask(title + "\nFilter (or press Enter to show all): ")
	if !ok {
		return backend.Task{}, ErrSelectionCancelled
	}
	filtered := views.Filter(tasks, views.Criteria{Search: filter, Sort: views.SortDue}, now)
	if len(filtered) == 0 {
		return backend.Task{}, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(p.writer, "Auto-selected: %s\n", filtered[0].Title)
		return filtered[0], nil
	}

	for i, t := range filtered {
		_, _ = fmt.Fprintf(p.writer, "  %d) %s\n", i+1, formatTaskLine(t, now))
	}
	input, ok := p.ask("Select (0 to cancel): ")
	if !ok {
		return backend.Task{}, ErrSelectionCancelled
	}
	num, err := strconv.Atoi(input)
	if err != nil {
		return backend.Task{}, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return backend.Task{}, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return backend.Task{}, fmt.Errorf("selection out of range: %d", num)
	}
	return filtered[num-1], nil
}

// formatTaskLine shows title, priority, category, due and tags.
func formatTaskLine(t backend.Task, now time.Time) string {
	meta := []string{string(t.Priority), t.Category}
	if views.IsOverdue(t, now) {
		meta = append(meta, views.OverdueLabel(t.Due, now))
	} else {
		meta = append(meta, "due: "+t.Due.Format(views.DefaultDateFormat))
	}
	if len(t.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(t.Tags, ","))
	}
	return fmt.Sprintf("%s [%s]", t.Title, strings.Join(meta, ", "))
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.noPrompt {
		return false, ErrNoPromptMode
	}
	for {
		input, ok := p.ask(question + " (y/n): ")
		if !ok {
			return false, nil
		}
		switch strings.ToLower(input) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// AddFields holds what interactive add mode collected.
type AddFields struct {
	Draft       store.Draft
	LeadMinutes int
	LeadSet     bool
}

// Add walks through the task fields. Title and due are required and
// re-asked until valid; the rest may be left empty.
func (p *Prompter) Add(now time.Time) (AddFields, error) {
	if p.noPrompt {
		return AddFields{}, ErrNoPromptMode
	}
	var f AddFields

	for {
		input, ok := p.ask("Title (required): ")
		if !ok {
			return AddFields{}, errors.New("no input for title")
		}
		if input != "" {
			f.Draft.Title = input
			break
		}
		_, _ = fmt.Fprintln(p.writer, "Title cannot be empty.")
	}

	for {
		input, ok := p.ask("Due (YYYY-MM-DD HH:MM, today 17:00, tomorrow, +Nd): ")
		if !ok {
			return AddFields{}, errors.New("no input for due date")
		}
		due, err := utils.ParseDueFlag(input, now)
		if err != nil || due == nil {
			_, _ = fmt.Fprintf(p.writer, "Invalid due date: %q\n", input)
			continue
		}
		f.Draft.Due = *due
		break
	}

	if input, ok := p.ask(fmt.Sprintf("Category (%s, optional): ", strings.Join(backend.Categories, ", "))); ok {
		f.Draft.Category = input
	}

	for {
		input, ok := p.ask("Priority (low, medium, high, optional): ")
		if !ok || input == "" {
			break
		}
		pr := backend.Priority(strings.ToLower(input))
		if !slices.Contains(backend.Priorities, pr) {
			_, _ = fmt.Fprintln(p.writer, "Invalid priority: must be low, medium or high")
			continue
		}
		f.Draft.Priority = pr
		break
	}

	if input, ok := p.ask("Tags (comma-separated, optional): "); ok {
		f.Draft.Tags = utils.SplitTags(input)
	}
	if input, ok := p.ask("Notes (optional): "); ok {
		f.Draft.Notes = input
	}

	for {
		input, ok := p.ask("Remind before (e.g. 15m, 1h, 1d, optional): ")
		if !ok || input == "" {
			break
		}
		lead, err := reminder.ParseLead(input)
		if err != nil {
			_, _ = fmt.Fprintln(p.writer, err.Error())
			continue
		}
		f.LeadMinutes, f.LeadSet = lead, true
		break
	}

	return f, nil
}

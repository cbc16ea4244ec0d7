// Package tui provides the terminal dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kairon/backend"
	"kairon/internal/analytics"
	"kairon/internal/app"
	"kairon/internal/notification"
	"kairon/internal/reminder"
	"kairon/internal/store"
	"kairon/internal/theme"
	"kairon/internal/utils"
	"kairon/internal/views"
	"kairon/internal/widgets"
)

// Backend is the subset of *app.App the dashboard drives.
type Backend interface {
	Now() time.Time
	Today(now time.Time) app.TodayView
	Theme() theme.Resolved
	CreateTask(ctx context.Context, d store.Draft, leadMinutes int) (backend.Task, error)
	CompleteTask(ctx context.Context, id int64) (backend.Task, error)
	DeleteTask(ctx context.Context, id int64, confirmed bool) error
	Reload(ctx context.Context) error
	Quote(ctx context.Context) widgets.Quote
	Weather(ctx context.Context) widgets.Weather
}

var _ Backend = (*app.App)(nil)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeFilter
	ModeHelp
	ModeConfirmDelete
)

// addStep walks the add dialog through its three prompts.
type addStep int

const (
	stepTitle addStep = iota
	stepDue
	stepLead
)

var windows = []views.Window{views.WindowAll, views.WindowToday, views.WindowWeek, views.WindowOverdue}

// Model represents the TUI state
type Model struct {
	backend Backend
	ctx     context.Context

	view    app.TodayView
	items   []backend.Task
	quote   string
	weather string

	cursor int
	mode   Mode
	input  textinput.Model
	step   addStep
	draft  store.Draft
	filter string
	window int
	status string

	width  int
	height int

	accentStyle    lipgloss.Style
	headerStyle    lipgloss.Style
	sectionStyle   lipgloss.Style
	selectedStyle  lipgloss.Style
	overdueStyle   lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
}

// RefreshMsg asks the dashboard to reload from storage, e.g. when another
// process changed the database.
type RefreshMsg struct{}

// NotificationMsg shows an in-app reminder in the status bar.
type NotificationMsg struct{ Notification notification.Notification }

type loadedMsg struct{ view app.TodayView }

type quoteMsg struct{ quote widgets.Quote }

type weatherMsg struct{ weather widgets.Weather }

type doneMsg struct{ status string }

type errMsg struct{ err error }

// New creates a new TUI model
func New(b Backend) *Model {
	ti := textinput.New()
	ti.CharLimit = 256

	accent := lipgloss.Color(b.Theme().Accent.From)
	return &Model{
		backend: b,
		ctx:     context.Background(),
		input:   ti,
		quote:   "Loading quote...",
		weather: "...",
		accentStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		headerStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		sectionStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245")),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		overdueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
}

// Init loads the dashboard and starts the widget fetches.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.fetchQuote(), m.fetchWeather())
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{m.backend.Today(m.backend.Now())}
	}
}

func (m *Model) reload() tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.Reload(m.ctx); err != nil {
			return errMsg{err}
		}
		return loadedMsg{m.backend.Today(m.backend.Now())}
	}
}

func (m *Model) fetchQuote() tea.Cmd {
	return func() tea.Msg { return quoteMsg{m.backend.Quote(m.ctx)} }
}

func (m *Model) fetchWeather() tea.Cmd {
	return func() tea.Msg { return weatherMsg{m.backend.Weather(m.ctx)} }
}

func (m *Model) createTask(d store.Draft, lead int) tea.Cmd {
	return func() tea.Msg {
		t, err := m.backend.CreateTask(m.ctx, d, lead)
		if err != nil {
			return errMsg{err}
		}
		return doneMsg{fmt.Sprintf("Added %q", t.Title)}
	}
}

func (m *Model) completeTask(id int64) tea.Cmd {
	return func() tea.Msg {
		t, err := m.backend.CompleteTask(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return doneMsg{fmt.Sprintf("Completed %q", t.Title)}
	}
}

func (m *Model) deleteTask(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.DeleteTask(m.ctx, id, true); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Task deleted"}
	}
}

func (m *Model) selected() (backend.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return backend.Task{}, false
	}
	return m.items[m.cursor], true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.view = msg.view
		m.applyFilter()
		return m, nil

	case RefreshMsg:
		return m, m.reload()

	case quoteMsg:
		m.quote = msg.quote.Text()
		return m, nil

	case weatherMsg:
		m.weather = strings.TrimSpace(msg.weather.Icon + " " + msg.weather.Text)
		return m, nil

	case NotificationMsg:
		m.status = "🔔 " + msg.Notification.Message
		return m, nil

	case doneMsg:
		m.status = msg.status
		return m, m.load()

	case errMsg:
		m.status = "Error: " + msg.err.Error()
		utils.Debugf("tui: %v", msg.err)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeFilter:
			return m.handleFilterMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}
	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "a":
		m.mode = ModeAdd
		m.step = stepTitle
		m.status = ""
		m.draft = store.Draft{Priority: backend.PriorityMedium}
		return m, m.prompt("Task title...", "")

	case "c":
		if t, ok := m.selected(); ok {
			return m, m.completeTask(t.ID)
		}

	case "d":
		if _, ok := m.selected(); ok {
			m.mode = ModeConfirmDelete
		}

	case "/":
		m.mode = ModeFilter
		return m, m.prompt("Search...", m.filter)

	case "t":
		m.window = (m.window + 1) % len(windows)
		m.applyFilter()

	case "r":
		m.status = "Reloading..."
		return m, tea.Batch(m.reload(), m.fetchQuote(), m.fetchWeather())

	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

func (m *Model) prompt(placeholder, value string) tea.Cmd {
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		switch m.step {
		case stepTitle:
			if value == "" {
				m.mode = ModeNormal
				return m, nil
			}
			m.draft.Title = value
			m.step = stepDue
			return m, m.prompt("Due, e.g. today 17:00 or 2026-05-01 09:00", "")
		case stepDue:
			due, err := utils.ParseDueFlag(value, m.backend.Now())
			if err != nil || due == nil {
				m.status = "Enter a due date, e.g. tomorrow 09:00"
				return m, nil
			}
			m.draft.Due = *due
			m.step = stepLead
			return m, m.prompt("Remind before (e.g. 15m, 1h), empty for default", "")
		case stepLead:
			lead := app.DefaultLead
			if value != "" {
				n, err := reminder.ParseLead(value)
				if err != nil {
					m.status = err.Error()
					return m, nil
				}
				lead = n
			}
			m.mode = ModeNormal
			return m, m.createTask(m.draft, lead)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter = m.input.Value()
		m.applyFilter()
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEsc:
		m.filter = ""
		m.applyFilter()
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		if t, ok := m.selected(); ok {
			return m, m.deleteTask(t.ID)
		}
	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) applyFilter() {
	m.items = views.Filter(m.view.Active, views.Criteria{
		Search: m.filter,
		Window: windows[m.window],
		Sort:   views.SortDue,
	}, m.backend.Now())
	if m.cursor >= len(m.items) {
		m.cursor = max(len(m.items)-1, 0)
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderAddDialog()
	case ModeFilter:
		return m.renderDialog("Search Tasks\n\n" + m.input.View() + "\n\n" + m.helpStyle.Render("Enter: filter  Esc: clear"))
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeConfirmDelete:
		t, _ := m.selected()
		return m.renderDialog(fmt.Sprintf("Delete %q?\n\n", t.Title) + m.helpStyle.Render("y: yes  n: no"))
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTasks())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderHeader() string {
	date := m.view.Date
	if date.IsZero() {
		date = m.backend.Now()
	}
	greeting := m.view.Greeting
	if greeting == "" {
		greeting = app.Greeting(date)
	}
	line := m.accentStyle.Render(greeting)
	if m.view.Location != "" {
		line += " · " + m.view.Location
	}
	line += " · " + date.Format("Monday, January 2")
	body := line + "   " + m.weather + "\n" + m.helpStyle.Render(m.quote)
	return m.headerStyle.Width(m.width - 2).Render(body)
}

func section(t backend.Task, now time.Time) string {
	switch {
	case views.IsOverdue(t, now):
		return "Overdue"
	case views.SameDay(t.Due, now):
		return "Due Today"
	default:
		return "Upcoming"
	}
}

func (m *Model) renderTasks() string {
	now := m.backend.Now()
	var b strings.Builder
	if len(m.items) == 0 {
		b.WriteString("No tasks\n")
		return b.String()
	}

	current := ""
	for i, t := range m.items {
		if s := section(t, now); s != current {
			current = s
			b.WriteString(m.sectionStyle.Render(s) + "\n")
		}
		cursor := " "
		title := t.Title
		if i == m.cursor {
			cursor = ">"
			title = m.selectedStyle.Render(title)
		}
		detail := t.Due.Format(views.DefaultDateFormat)
		if views.IsOverdue(t, now) {
			detail = m.overdueStyle.Render(views.OverdueLabel(t.Due, now))
		}
		line := fmt.Sprintf("%s %s  %s  [%s]", cursor, title, detail, t.Priority)
		if p := views.SubtaskProgress(t); p.Total > 0 {
			line += fmt.Sprintf("  %d/%d", p.Done, p.Total)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func summaryLine(s analytics.Summary) string {
	return fmt.Sprintf("%d active · %d done · %d%% complete · %d%% on time", s.Active, s.Completed, s.CompletionRate, s.OnTimeRate)
}

func (m *Model) renderStatusBar() string {
	left := summaryLine(m.view.Summary)
	if m.status != "" {
		left = m.status
	}

	right := "window:" + string(windows[m.window]) + "  ?:help  q:quit"
	if m.filter != "" {
		right = "Filter: " + m.filter + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderAddDialog() string {
	title := "Add Task"
	switch m.step {
	case stepDue:
		title = "Due date for " + m.draft.Title
	case stepLead:
		title = "Reminder for " + m.draft.Title
	}
	body := title + "\n\n" + m.input.View() + "\n\n" + m.helpStyle.Render("Enter: next  Esc: cancel")
	if m.status != "" && m.step != stepTitle {
		body += "\n" + m.overdueStyle.Render(m.status)
	}
	return m.renderDialog(body)
}

func (m *Model) renderHelpDialog() string {
	help := `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up

Actions:
  a      Add task (title, due, reminder)
  c      Complete selected task
  d      Delete task (with confirm)
  /      Search tasks
  t      Cycle window (all, today, week, overdue)
  r      Reload from disk

General:
  ?      Show this help
  q      Quit

Press any key to close`
	return m.renderDialog(help)
}

func (m *Model) renderDialog(content string) string {
	dialog := m.dialogStyle.Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

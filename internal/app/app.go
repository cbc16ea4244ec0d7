// Package app wires the stores, reminder scheduler, notifications, widgets
// and metrics into one instance shared by the CLI, TUI and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"kairon/backend"
	"kairon/backend/sqlite"
	"kairon/internal/analytics"
	"kairon/internal/cache"
	"kairon/internal/calendar"
	"kairon/internal/config"
	"kairon/internal/credentials"
	"kairon/internal/markdown"
	"kairon/internal/metrics"
	"kairon/internal/notification"
	"kairon/internal/reminder"
	"kairon/internal/store"
	"kairon/internal/theme"
	"kairon/internal/utils"
	"kairon/internal/views"
	"kairon/internal/widgets"
)

// ErrConfirmationRequired is returned by destructive operations called
// without explicit confirmation.
var ErrConfirmationRequired = errors.New("confirmation required")

// DefaultLead asks CreateTask to use the configured default reminder lead.
const DefaultLead = -1

// Options configures Open. Zero fields fall back to production wiring.
type Options struct {
	Config      *config.Config
	Store       backend.Store
	Clock       reminder.Clock
	Notifier    notification.NotificationManager
	Requester   notification.Requester
	Widgets     *widgets.Client
	Credentials *credentials.Manager
}

// App is one running instance.
type App struct {
	cfg       *config.Config
	db        backend.Store
	clock     reminder.Clock
	notifier  notification.NotificationManager
	Tasks     *store.TaskStore
	Interests *store.InterestStore
	Settings  *store.SettingsStore
	Reminders *reminder.Scheduler
	Gate      *notification.Gate
	Inbox     *notification.Inbox
	Widgets   *widgets.Client
	Metrics   *metrics.Recorder
}

// Open loads the persisted snapshot and builds every collaborator.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	db := opts.Store
	if db == nil {
		var err error
		db, err = sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, utils.ErrStorageUnavailable(cfg.Database.Path, err)
		}
	}
	snap, err := db.LoadAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, utils.ErrStorageUnavailable(db.Path(), err)
	}

	a := &App{cfg: cfg, db: db, clock: opts.Clock}
	if a.clock == nil {
		a.clock = reminder.SystemClock()
	}
	a.Tasks = store.NewTaskStore(db, snap.Tasks, store.WithClock(a.clock.Now))
	a.Interests = store.NewInterestStore(db, snap.Interests)
	a.Settings = store.NewSettingsStore(db, snap.Settings)

	a.notifier = opts.Notifier
	if a.notifier == nil {
		a.notifier, err = notification.NewManager(&cfg.Notification)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("notifications: %w", err)
		}
	}
	requester := opts.Requester
	if requester == nil {
		requester = notification.PlatformRequester(&cfg.Notification, nil)
	}
	a.Gate = notification.NewGate(a.Settings.Get().NotificationPermission, requester, a.Settings.SetNotificationPermission)
	a.Inbox = notification.NewInbox(0)
	a.Reminders = reminder.NewScheduler(a.Tasks.Get,
		reminder.WithClock(a.clock),
		reminder.WithNotifier(a.notifier),
		reminder.WithInbox(a.Inbox),
		reminder.WithGate(a.Gate),
		reminder.WithPolicy(func() backend.NotificationPolicy { return a.Settings.Get().Notifications }),
	)

	a.Widgets = opts.Widgets
	if a.Widgets == nil {
		wcfg := cfg.Widgets
		creds := opts.Credentials
		if creds == nil {
			creds = credentials.NewManager()
		}
		wcfg.APIKey = creds.ResolveWeatherKey(ctx)
		a.Widgets = widgets.New(wcfg, widgets.WithCache(cache.New(filepath.Join(config.GetCacheDir(), "widgets.json"))))
	}
	a.Metrics = metrics.New(a)

	utils.Debugf("opened %s: %d tasks, %d interests", db.Path(), len(snap.Tasks), len(snap.Interests))
	return a, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Now returns the app clock's current time.
func (a *App) Now() time.Time { return a.clock.Now() }

// DBPath returns the storage location.
func (a *App) DBPath() string { return a.db.Path() }

func (a *App) leadFor(lead int) int {
	if lead < 0 {
		return a.cfg.DefaultLeadMinutes()
	}
	return lead
}

func (a *App) schedule(ctx context.Context, t backend.Task, lead int) {
	if !a.cfg.Reminder.Enabled || lead <= 0 {
		return
	}
	if _, err := a.Reminders.Schedule(ctx, t, lead); err != nil {
		utils.Warnf("Failed to schedule reminder for task %d: %v", t.ID, err)
	}
}

// CreateTask stores a new task and schedules its reminder. A negative
// lead uses the configured default.
func (a *App) CreateTask(ctx context.Context, d store.Draft, leadMinutes int) (backend.Task, error) {
	t, err := a.Tasks.Create(ctx, d)
	a.Metrics.ObserveOp("create", err)
	if err != nil {
		return backend.Task{}, err
	}
	a.schedule(ctx, t, a.leadFor(leadMinutes))
	return t, nil
}

// UpdateTask edits a task. A positive lead reschedules the reminder, zero
// cancels it, and a negative lead keeps the current lead relative to the
// new due time.
func (a *App) UpdateTask(ctx context.Context, id int64, p store.Patch, leadMinutes int) (backend.Task, error) {
	before, _ := a.Tasks.Get(id)
	t, err := a.Tasks.Update(ctx, id, p)
	a.Metrics.ObserveOp("update", err)
	if err != nil {
		return backend.Task{}, err
	}
	switch {
	case leadMinutes == 0:
		a.Reminders.Cancel(id)
	case leadMinutes > 0:
		a.schedule(ctx, t, leadMinutes)
	default:
		if h, ok := a.Reminders.Get(id); ok && !before.Due.Equal(t.Due) {
			a.schedule(ctx, t, int(before.Due.Sub(h.FireAt()).Minutes()))
		}
	}
	return t, nil
}

// CompleteTask marks a task done and cancels its reminder.
func (a *App) CompleteTask(ctx context.Context, id int64) (backend.Task, error) {
	t, err := a.Tasks.Complete(ctx, id)
	a.Metrics.ObserveOp("complete", err)
	if err != nil {
		return backend.Task{}, err
	}
	a.Reminders.Cancel(id)
	return t, nil
}

// ToggleSubtask flips one checklist item.
func (a *App) ToggleSubtask(ctx context.Context, id int64, index int) (backend.Task, error) {
	t, err := a.Tasks.ToggleSubtask(ctx, id, index)
	a.Metrics.ObserveOp("toggle_subtask", err)
	return t, err
}

// DeleteTask removes a task once confirmed and cancels its reminder.
func (a *App) DeleteTask(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	err := a.Tasks.Delete(ctx, id)
	a.Metrics.ObserveOp("delete", err)
	if err != nil {
		return err
	}
	a.Reminders.Cancel(id)
	return nil
}

// Reorder persists a new manual order of active tasks.
func (a *App) Reorder(ctx context.Context, ids []int64) error {
	err := a.Tasks.Reorder(ctx, ids)
	a.Metrics.ObserveOp("reorder", err)
	return err
}

// AddInterest stores a new interest.
func (a *App) AddInterest(ctx context.Context, title, description string) (backend.Interest, error) {
	in, err := a.Interests.Create(ctx, title, description)
	a.Metrics.ObserveOp("add_interest", err)
	return in, err
}

// DeleteInterest removes an interest.
func (a *App) DeleteInterest(ctx context.Context, id int64) error {
	err := a.Interests.Delete(ctx, id)
	a.Metrics.ObserveOp("delete_interest", err)
	return err
}

// SaveSettings replaces the settings record.
func (a *App) SaveSettings(ctx context.Context, s backend.Settings) (backend.Settings, error) {
	saved, err := a.Settings.Save(ctx, s)
	a.Metrics.ObserveOp("save_settings", err)
	return saved, err
}

// TodayView is the dashboard's home screen.
type TodayView struct {
	Greeting string            `json:"greeting"`
	Location string            `json:"location"`
	Date     time.Time         `json:"date"`
	Overdue  []backend.Task    `json:"overdue"`
	DueToday []backend.Task    `json:"dueToday"`
	Active   []backend.Task    `json:"active"`
	Summary  analytics.Summary `json:"summary"`
}

// Greeting returns the salutation for the hour of now.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 17:
		return "Good Afternoon"
	default:
		return "Good Evening"
	}
}

// Today assembles the home screen for now.
func (a *App) Today(now time.Time) TodayView {
	all := a.Tasks.All()
	active := views.Sort(a.Tasks.Active(), views.SortDue)
	return TodayView{
		Greeting: Greeting(now),
		Location: a.Settings.Get().Location,
		Date:     now,
		Overdue:  views.Sort(views.Overdue(all, now), views.SortDue),
		DueToday: views.Sort(views.DueToday(all, now), views.SortDue),
		Active:   active,
		Summary:  analytics.Compute(all),
	}
}

// Theme resolves the colours chosen in settings.
func (a *App) Theme() theme.Resolved {
	return theme.Resolve(a.Settings.Get())
}

// Analytics summarizes the whole task collection.
func (a *App) Analytics() analytics.Summary {
	return analytics.Compute(a.Tasks.All())
}

// PendingReminders counts scheduled reminders.
func (a *App) PendingReminders() int {
	return len(a.Reminders.Pending())
}

// Calendar returns the events of the month containing day.
func (a *App) Calendar(day time.Time) []calendar.Event {
	return calendar.Month(calendar.Project(a.Tasks.All(), a.Settings.Get().ThemeColor), day)
}

// ExportICS writes every task as an iCalendar feed.
func (a *App) ExportICS(w io.Writer) error {
	return calendar.WriteICS(w, a.Tasks.All(), a.clock.Now())
}

// ExportMarkdown writes every task as a markdown checklist, in manual order.
func (a *App) ExportMarkdown(w io.Writer) error {
	return markdown.Write(w, views.Sort(a.Tasks.All(), views.SortManual), a.clock.Now())
}

// Quote returns today's quote.
func (a *App) Quote(ctx context.Context) widgets.Quote {
	return a.Widgets.Quote(ctx)
}

// Weather returns the weather at the configured location.
func (a *App) Weather(ctx context.Context) widgets.Weather {
	return a.Widgets.Weather(ctx, a.Settings.Get().Location)
}

// TestNotification asks for permission if it was never decided and, once
// granted, sends a test notification through every channel.
func (a *App) TestNotification(ctx context.Context) (backend.Permission, error) {
	state, err := a.Gate.Request(ctx)
	if err != nil || state != backend.PermissionGranted {
		return state, err
	}
	n := notification.Notification{
		Type:      notification.NotifyTest,
		Title:     "kairon",
		Message:   "Notifications are working",
		Timestamp: a.Now(),
	}
	a.Inbox.Push(n)
	return state, a.notifier.Send(n)
}

// NotifyOverdue sends one digest for the active tasks already past due.
// Permission is requested lazily. It returns how many tasks were overdue.
func (a *App) NotifyOverdue(ctx context.Context) (int, error) {
	overdue := views.Sort(views.Overdue(a.Tasks.All(), a.Now()), views.SortDue)
	if len(overdue) == 0 || a.Settings.Get().Notifications == backend.NotifyNone {
		return len(overdue), nil
	}
	if state, err := a.Gate.Request(ctx); err != nil || state != backend.PermissionGranted {
		return len(overdue), err
	}
	msg := fmt.Sprintf("%d tasks overdue, oldest: %s", len(overdue), overdue[0].Title)
	if len(overdue) == 1 {
		msg = overdue[0].Title + " is " + views.OverdueLabel(overdue[0].Due, a.Now())
	}
	n := notification.Notification{
		Type:      notification.NotifyOverdue,
		Title:     "Overdue tasks",
		Message:   msg,
		Timestamp: a.Now(),
	}
	a.Inbox.Push(n)
	return len(overdue), a.notifier.Send(n)
}

// Reload replaces in-memory state with what storage holds, e.g. after
// another process wrote the database. Reminders for tasks that are gone or
// completed are cancelled.
func (a *App) Reload(ctx context.Context) error {
	snap, err := a.db.LoadAll(ctx)
	if err != nil {
		return &backend.PersistenceError{Op: "reload", Err: err}
	}
	a.Tasks.Replace(snap.Tasks)
	a.Interests.Replace(snap.Interests)
	a.Settings.Replace(snap.Settings)
	for _, h := range a.Reminders.Pending() {
		if t, ok := a.Tasks.Get(h.TaskID()); !ok || !t.IsActive() {
			h.Cancel()
		}
	}
	utils.Debugf("reloaded %d tasks from %s", len(snap.Tasks), a.db.Path())
	return nil
}

// Close cancels reminders and releases storage.
func (a *App) Close() error {
	a.Reminders.CancelAll()
	var errs []error
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

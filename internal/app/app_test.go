package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kairon/backend"
	"kairon/internal/app"
	"kairon/internal/notification"
	"kairon/internal/store"
	"kairon/internal/testutil"
)

func mustCreate(t *testing.T, ta *testutil.TestApp, title string, due time.Time, lead int) backend.Task {
	t.Helper()
	task, err := ta.CreateTask(context.Background(), store.Draft{Title: title, Due: due, Priority: backend.PriorityHigh}, lead)
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", title, err)
	}
	return task
}

// TestCreateTaskSchedulesReminder verifies the reminder fires lead minutes before due
func TestCreateTaskSchedulesReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	mustCreate(t, ta, "Dentist", testutil.Reference.Add(2*time.Hour), 30)

	if ta.PendingReminders() != 1 {
		t.Fatalf("PendingReminders = %d, want 1", ta.PendingReminders())
	}
	ta.Clock.Advance(90 * time.Minute)

	sent := ta.Notifier.Sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Message, "Dentist") {
		t.Fatalf("sent = %+v", sent)
	}
	if ta.Inbox.Len() != 1 {
		t.Errorf("inbox len = %d", ta.Inbox.Len())
	}
	if ta.Gate.State() != backend.PermissionGranted {
		t.Errorf("gate = %s", ta.Gate.State())
	}
	if got := ta.Settings.Get().NotificationPermission; got != backend.PermissionGranted {
		t.Errorf("persisted permission = %s", got)
	}
}

// TestCompleteCancelsReminder verifies completion silences the reminder
func TestCompleteCancelsReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	task := mustCreate(t, ta, "Report", testutil.Reference.Add(time.Hour), 15)

	if _, err := ta.CompleteTask(context.Background(), task.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	ta.Clock.Advance(2 * time.Hour)
	if len(ta.Notifier.Sent()) != 0 {
		t.Error("completed task should not notify")
	}
	if ta.PendingReminders() != 0 {
		t.Error("reminder still pending")
	}
}

// TestDeleteRequiresConfirmation verifies unconfirmed deletes are refused
func TestDeleteRequiresConfirmation(t *testing.T) {
	ta := testutil.NewApp(t)
	task := mustCreate(t, ta, "Groceries", testutil.Reference.Add(time.Hour), 10)
	ctx := context.Background()

	if err := ta.DeleteTask(ctx, task.ID, false); !errors.Is(err, app.ErrConfirmationRequired) {
		t.Fatalf("DeleteTask unconfirmed = %v", err)
	}
	if _, ok := ta.Tasks.Get(task.ID); !ok {
		t.Fatal("task removed without confirmation")
	}
	if err := ta.DeleteTask(ctx, task.ID, true); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if ta.PendingReminders() != 0 {
		t.Error("delete should cancel the reminder")
	}
	if err := ta.DeleteTask(ctx, task.ID, true); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

// TestUpdateMovesReminder verifies a due change keeps the lead
func TestUpdateMovesReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	task := mustCreate(t, ta, "Call", testutil.Reference.Add(time.Hour), 20)

	newDue := testutil.Reference.Add(3 * time.Hour)
	if _, err := ta.UpdateTask(context.Background(), task.ID, store.Patch{Due: &newDue}, app.DefaultLead); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	h, ok := ta.Reminders.Get(task.ID)
	if !ok {
		t.Fatal("reminder dropped")
	}
	if want := newDue.Add(-20 * time.Minute); !h.FireAt().Equal(want) {
		t.Errorf("FireAt = %v, want %v", h.FireAt(), want)
	}

	if _, err := ta.UpdateTask(context.Background(), task.ID, store.Patch{}, 0); err != nil {
		t.Fatal(err)
	}
	if ta.PendingReminders() != 0 {
		t.Error("lead 0 should cancel")
	}
}

// TestTodayView verifies the home screen partitions
func TestTodayView(t *testing.T) {
	ta := testutil.NewApp(t)
	now := testutil.Reference
	mustCreate(t, ta, "Late", now.Add(-26*time.Hour), 0)
	mustCreate(t, ta, "Soon", now.Add(3*time.Hour), 0)
	mustCreate(t, ta, "Later", now.Add(72*time.Hour), 0)

	v := ta.Today(now)
	if v.Greeting != "Good Morning" {
		t.Errorf("Greeting = %q", v.Greeting)
	}
	if v.Location != "Port Harcourt" {
		t.Errorf("Location = %q", v.Location)
	}
	if len(v.Overdue) != 1 || v.Overdue[0].Title != "Late" {
		t.Errorf("Overdue = %+v", v.Overdue)
	}
	if len(v.DueToday) != 1 || v.DueToday[0].Title != "Soon" {
		t.Errorf("DueToday = %+v", v.DueToday)
	}
	if len(v.Active) != 3 || v.Summary.Total != 3 {
		t.Errorf("Active = %d, Summary = %+v", len(v.Active), v.Summary)
	}
}

// TestGreeting verifies hour boundaries
func TestGreeting(t *testing.T) {
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for hour, want := range map[int]string{0: "Good Morning", 11: "Good Morning", 12: "Good Afternoon", 16: "Good Afternoon", 17: "Good Evening", 23: "Good Evening"} {
		if got := app.Greeting(day.Add(time.Duration(hour) * time.Hour)); got != want {
			t.Errorf("Greeting(%d) = %q, want %q", hour, got, want)
		}
	}
}

// TestReloadPicksUpExternalWrites verifies Reload reads storage and drops stale reminders
func TestReloadPicksUpExternalWrites(t *testing.T) {
	ta := testutil.NewApp(t)
	task := mustCreate(t, ta, "Shared", testutil.Reference.Add(time.Hour), 10)
	ctx := context.Background()

	// Another process completes the task directly in storage.
	done := task.Clone()
	done.Status = backend.StatusCompleted
	completedAt := testutil.Reference
	done.CompletedAt = &completedAt
	if _, err := ta.Store.PutTask(ctx, done); err != nil {
		t.Fatal(err)
	}
	if _, err := ta.Store.PutInterest(ctx, backend.Interest{Title: "Chess"}); err != nil {
		t.Fatal(err)
	}

	if err := ta.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	got, _ := ta.Tasks.Get(task.ID)
	if got.IsActive() {
		t.Error("reload did not pick up completion")
	}
	if ta.PendingReminders() != 0 {
		t.Error("reminder for completed task should be cancelled")
	}
	if len(ta.Interests.All()) != 1 {
		t.Error("interest not reloaded")
	}
}

// TestInterestsAndSettings verifies the remaining write paths
func TestInterestsAndSettings(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()

	in, err := ta.AddInterest(ctx, "Photography", "film")
	if err != nil {
		t.Fatalf("AddInterest: %v", err)
	}
	if err := ta.DeleteInterest(ctx, in.ID); err != nil {
		t.Fatalf("DeleteInterest: %v", err)
	}

	s := ta.Settings.Get()
	s.ThemeColor = "green"
	s.Notifications = backend.NotifyHigh
	saved, err := ta.SaveSettings(ctx, s)
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if saved.ThemeColor != "green" {
		t.Errorf("ThemeColor = %q", saved.ThemeColor)
	}

	s.ThemeColor = "pink"
	if _, err := ta.SaveSettings(ctx, s); !backend.IsValidation(err) {
		t.Errorf("invalid colour = %v, want ValidationError", err)
	}
}

// TestPolicySkipsLowPriority verifies the "high only" notification policy
func TestPolicySkipsLowPriority(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	s := ta.Settings.Get()
	s.Notifications = backend.NotifyHigh
	if _, err := ta.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	_, err := ta.CreateTask(ctx, store.Draft{Title: "Low", Due: testutil.Reference.Add(time.Hour), Priority: backend.PriorityLow}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if ta.PendingReminders() != 0 {
		t.Error("low priority reminder scheduled under high-only policy")
	}
}

// TestExportAndCalendar verifies the calendar surfaces
func TestExportAndCalendar(t *testing.T) {
	ta := testutil.NewApp(t)
	mustCreate(t, ta, "Standup", testutil.Reference.Add(time.Hour), 0)

	var buf bytes.Buffer
	if err := ta.ExportICS(&buf); err != nil {
		t.Fatalf("ExportICS: %v", err)
	}
	if !strings.Contains(buf.String(), "SUMMARY:Standup") {
		t.Errorf("ICS missing event:\n%s", buf.String())
	}
	if events := ta.Calendar(testutil.Reference); len(events) != 1 {
		t.Errorf("Calendar = %d events", len(events))
	}
}

// TestWidgetsFallBack verifies unreachable services never fail the app
func TestWidgetsFallBack(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	if q := ta.Quote(ctx); !q.Fallback {
		t.Errorf("Quote = %+v", q)
	}
	if w := ta.Weather(ctx); !w.Fallback || w.Text != "N/A" {
		t.Errorf("Weather = %+v", w)
	}
}

// TestTestNotification verifies permission is requested before the test send
func TestTestNotification(t *testing.T) {
	ta := testutil.NewApp(t)
	state, err := ta.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if state != backend.PermissionGranted {
		t.Fatalf("state = %s", state)
	}
	sent := ta.Notifier.Sent()
	if len(sent) != 1 || sent[0].Type != notification.NotifyTest {
		t.Errorf("sent = %+v", sent)
	}
}

// TestNotifyOverdue verifies one digest covers every overdue task
func TestNotifyOverdue(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	mustCreate(t, ta, "Taxes", testutil.Reference.Add(-48*time.Hour), 0)
	mustCreate(t, ta, "Library books", testutil.Reference.Add(-2*time.Hour), 0)
	mustCreate(t, ta, "Later", testutil.Reference.Add(2*time.Hour), 0)

	n, err := ta.NotifyOverdue(ctx)
	if err != nil {
		t.Fatalf("NotifyOverdue: %v", err)
	}
	if n != 2 {
		t.Errorf("overdue = %d, want 2", n)
	}
	sent := ta.Notifier.Sent()
	if len(sent) != 1 || sent[0].Type != notification.NotifyOverdue {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].Message, "2 tasks overdue, oldest: Taxes") {
		t.Errorf("message = %q", sent[0].Message)
	}
}

// TestNotifyOverdueRespectsPolicy verifies the none policy silences the digest
func TestNotifyOverdueRespectsPolicy(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	mustCreate(t, ta, "Taxes", testutil.Reference.Add(-48*time.Hour), 0)
	s := ta.Settings.Get()
	s.Notifications = backend.NotifyNone
	if _, err := ta.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := ta.NotifyOverdue(ctx); err != nil {
		t.Fatal(err)
	}
	if len(ta.Notifier.Sent()) != 0 {
		t.Error("digest sent under none policy")
	}
}

// TestUpdateIntoPastFireTimeCancelsReminder verifies a due moved inside the
// lead window drops the old reminder instead of leaving it pending
func TestUpdateIntoPastFireTimeCancelsReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	task := mustCreate(t, ta, "Flight", testutil.Reference.Add(24*time.Hour), 30)

	soon := testutil.Reference.Add(10 * time.Minute)
	if _, err := ta.UpdateTask(ctx, task.ID, store.Patch{Due: &soon}, 30); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if _, ok := ta.Reminders.Get(task.ID); ok {
		t.Fatal("stale reminder still pending")
	}
	ta.Clock.Advance(48 * time.Hour)
	if sent := ta.Notifier.Sent(); len(sent) != 0 {
		t.Errorf("sent = %+v, want none", sent)
	}
}

// TestUpdateToExcludedPriorityCancelsReminder verifies rescheduling under
// the high-only policy drops a reminder the new priority no longer earns
func TestUpdateToExcludedPriorityCancelsReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	s := ta.Settings.Get()
	s.Notifications = backend.NotifyHigh
	if _, err := ta.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	task := mustCreate(t, ta, "Invoice", testutil.Reference.Add(2*time.Hour), 30)
	if ta.PendingReminders() != 1 {
		t.Fatalf("PendingReminders = %d, want 1", ta.PendingReminders())
	}

	low := backend.PriorityLow
	if _, err := ta.UpdateTask(ctx, task.ID, store.Patch{Priority: &low}, 30); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if ta.PendingReminders() != 0 {
		t.Error("low priority reminder kept under high-only policy")
	}
	ta.Clock.Advance(3 * time.Hour)
	if len(ta.Notifier.Sent()) != 0 {
		t.Error("excluded reminder fired")
	}
}

// TestPolicyChangeSilencesScheduledReminder verifies reminders scheduled
// before the policy was tightened stay quiet
func TestPolicyChangeSilencesScheduledReminder(t *testing.T) {
	ta := testutil.NewApp(t)
	ctx := context.Background()
	mustCreate(t, ta, "Pharmacy", testutil.Reference.Add(time.Hour), 30)

	s := ta.Settings.Get()
	s.Notifications = backend.NotifyNone
	if _, err := ta.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	ta.Clock.Advance(3 * time.Hour)
	if sent := ta.Notifier.Sent(); len(sent) != 0 {
		t.Errorf("sent = %+v, want none", sent)
	}
	if ta.Inbox.Len() != 0 {
		t.Errorf("inbox len = %d, want 0", ta.Inbox.Len())
	}
}

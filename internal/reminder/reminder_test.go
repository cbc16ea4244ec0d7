package reminder

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"kairon/backend"
	"kairon/internal/notification"
)

// fakeClock fires timers when Advance passes their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

type recordingManager struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (m *recordingManager) Send(n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}
func (m *recordingManager) SendAsync(n notification.Notification) { _ = m.Send(n) }
func (m *recordingManager) Close() error                          { return nil }
func (m *recordingManager) ChannelCount() int                     { return 1 }

type harness struct {
	clock    *fakeClock
	tasks    map[int64]backend.Task
	inbox    *notification.Inbox
	notifier *recordingManager
	gate     *notification.Gate
	asked    int
	policy   backend.NotificationPolicy
	s        *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{now: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)},
		tasks:    map[int64]backend.Task{},
		inbox:    notification.NewInbox(10),
		notifier: &recordingManager{},
		policy:   backend.NotifyAll,
	}
	h.gate = notification.NewGate(backend.PermissionDefault, func(ctx context.Context) (backend.Permission, error) {
		h.asked++
		return backend.PermissionGranted, nil
	}, nil)
	h.s = NewScheduler(
		func(id int64) (backend.Task, bool) { tk, ok := h.tasks[id]; return tk, ok },
		WithClock(h.clock),
		WithInbox(h.inbox),
		WithNotifier(h.notifier),
		WithGate(h.gate),
		WithPolicy(func() backend.NotificationPolicy { return h.policy }),
	)
	return h
}

func (h *harness) addTask(id int64, title string, dueIn time.Duration) backend.Task {
	tk := backend.Task{
		ID:       id,
		Title:    title,
		Priority: backend.PriorityLow,
		Due:      h.clock.Now().Add(dueIn),
		Status:   backend.StatusActive,
	}
	h.tasks[id] = tk
	return tk
}

// TestScheduleFiresAtLead verifies in-app and platform notifications at due minus lead
func TestScheduleFiresAtLead(t *testing.T) {
	h := newHarness(t)
	tk := h.addTask(1, "Dentist", time.Hour)

	handle, err := h.s.Schedule(context.Background(), tk, 15)
	if err != nil || handle == nil {
		t.Fatalf("Schedule = %v, %v", handle, err)
	}
	if want := tk.Due.Add(-15 * time.Minute); !handle.FireAt().Equal(want) {
		t.Errorf("FireAt = %v, want %v", handle.FireAt(), want)
	}
	if h.asked != 1 {
		t.Errorf("permission asked %d times, want 1", h.asked)
	}

	h.clock.Advance(44 * time.Minute)
	if h.inbox.Len() != 0 {
		t.Fatal("reminder fired early")
	}

	h.clock.Advance(time.Minute)
	list := h.inbox.List()
	if len(list) != 1 || !strings.Contains(list[0].Message, `"Dentist" is due soon`) {
		t.Fatalf("inbox = %+v", list)
	}
	if len(h.notifier.sent) != 1 || h.notifier.sent[0].Metadata["task_id"] != "1" {
		t.Errorf("platform notifications = %+v", h.notifier.sent)
	}
	if len(h.s.Pending()) != 0 {
		t.Error("fired reminder still pending")
	}
}

// TestScheduleSkips verifies non-positive leads and past fire instants do nothing
func TestScheduleSkips(t *testing.T) {
	h := newHarness(t)
	tk := h.addTask(1, "Soon", 10*time.Minute)

	tests := []struct {
		name string
		lead int
	}{
		{"zero lead", 0},
		{"negative lead", -5},
		{"fire instant in the past", 30},
		{"fire instant exactly now", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, err := h.s.Schedule(context.Background(), tk, tt.lead)
			if err != nil || handle != nil {
				t.Errorf("Schedule = %v, %v; want nil, nil", handle, err)
			}
		})
	}

	h.clock.Advance(time.Hour)
	if h.inbox.Len() != 0 || h.asked != 0 {
		t.Errorf("skipped schedules had effects: inbox=%d asked=%d", h.inbox.Len(), h.asked)
	}
}

// TestFireRevalidatesTask verifies completed and deleted tasks stay silent
func TestFireRevalidatesTask(t *testing.T) {
	h := newHarness(t)
	done := h.addTask(1, "Done early", time.Hour)
	gone := h.addTask(2, "Deleted", time.Hour)

	if _, err := h.s.Schedule(context.Background(), done, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := h.s.Schedule(context.Background(), gone, 10); err != nil {
		t.Fatal(err)
	}

	completedAt := h.clock.Now()
	done.Status = backend.StatusCompleted
	done.CompletedAt = &completedAt
	h.tasks[1] = done
	delete(h.tasks, 2)

	h.clock.Advance(2 * time.Hour)
	if h.inbox.Len() != 0 || len(h.notifier.sent) != 0 {
		t.Errorf("stale reminders fired: inbox=%d sent=%d", h.inbox.Len(), len(h.notifier.sent))
	}
}

// TestCancel verifies handle and task-id cancellation
func TestCancel(t *testing.T) {
	h := newHarness(t)
	a := h.addTask(1, "A", time.Hour)
	b := h.addTask(2, "B", time.Hour)

	ha, _ := h.s.Schedule(context.Background(), a, 5)
	if _, err := h.s.Schedule(context.Background(), b, 5); err != nil {
		t.Fatal(err)
	}

	if !ha.Cancel() {
		t.Error("first Cancel should report pending")
	}
	if ha.Cancel() {
		t.Error("second Cancel should be a no-op")
	}
	if !h.s.Cancel(2) || h.s.Cancel(2) {
		t.Error("Cancel(taskID) should succeed exactly once")
	}

	h.clock.Advance(2 * time.Hour)
	if h.inbox.Len() != 0 {
		t.Errorf("cancelled reminders fired: %d", h.inbox.Len())
	}
}

// TestRescheduleReplaces verifies one pending reminder per task
func TestRescheduleReplaces(t *testing.T) {
	h := newHarness(t)
	tk := h.addTask(1, "Call", time.Hour)

	first, _ := h.s.Schedule(context.Background(), tk, 50)
	second, _ := h.s.Schedule(context.Background(), tk, 5)

	pending := h.s.Pending()
	if len(pending) != 1 || pending[0] != second {
		t.Fatalf("Pending = %v, want only the second handle", pending)
	}
	if first.Cancel() {
		t.Error("replaced handle should already be cancelled")
	}

	h.clock.Advance(time.Hour)
	if h.inbox.Len() != 1 {
		t.Errorf("inbox = %d notifications, want 1", h.inbox.Len())
	}
}

// TestPolicy verifies the notifications setting filters scheduling
func TestPolicy(t *testing.T) {
	h := newHarness(t)
	low := h.addTask(1, "low", time.Hour)
	high := h.addTask(2, "high", time.Hour)
	high.Priority = backend.PriorityHigh
	h.tasks[2] = high

	h.policy = backend.NotifyHigh
	if hl, _ := h.s.Schedule(context.Background(), low, 5); hl != nil {
		t.Error("low priority scheduled under 'high' policy")
	}
	if hh, _ := h.s.Schedule(context.Background(), high, 5); hh == nil {
		t.Error("high priority not scheduled under 'high' policy")
	}

	h.policy = backend.NotifyNone
	h.s.CancelAll()
	if hh, _ := h.s.Schedule(context.Background(), high, 5); hh != nil {
		t.Error("scheduled under 'none' policy")
	}
}

// TestDeniedPermissionKeepsInApp verifies denial suppresses only platform delivery
func TestDeniedPermissionKeepsInApp(t *testing.T) {
	h := newHarness(t)
	h.gate = notification.NewGate(backend.PermissionDenied, nil, nil)
	WithGate(h.gate)(h.s)

	tk := h.addTask(1, "Quiet", time.Hour)
	if _, err := h.s.Schedule(context.Background(), tk, 10); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Hour)

	if h.inbox.Len() != 1 {
		t.Errorf("inbox = %d, want 1", h.inbox.Len())
	}
	if len(h.notifier.sent) != 0 {
		t.Errorf("platform notification sent without permission")
	}
}

// TestPendingOrder verifies pending reminders are sorted by fire time
func TestPendingOrder(t *testing.T) {
	h := newHarness(t)
	late := h.addTask(1, "late", 3*time.Hour)
	early := h.addTask(2, "early", time.Hour)
	_, _ = h.s.Schedule(context.Background(), late, 5)
	_, _ = h.s.Schedule(context.Background(), early, 5)

	pending := h.s.Pending()
	if len(pending) != 2 || pending[0].TaskID() != 2 || pending[1].TaskID() != 1 {
		t.Errorf("Pending order = %v", pending)
	}
	if _, ok := h.s.Get(1); !ok {
		t.Error("Get(1) should find the pending reminder")
	}
}

// TestParseLead verifies lead parsing into minutes
func TestParseLead(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"none", 0},
		{"15", 15},
		{"15m", 15},
		{"30 mins", 30},
		{"1 hour", 60},
		{"2h", 120},
		{"1d", 1440},
		{"1 week", 10080},
	}
	for _, tt := range tests {
		got, err := ParseLead(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseLead(%q) = %d, %v; want %d", tt.input, got, err, tt.want)
		}
	}

	for _, bad := range []string{"soon", "-5m", "5 fortnights"} {
		if _, err := ParseLead(bad); err == nil {
			t.Errorf("ParseLead(%q) should fail", bad)
		}
	}
}

// TestRescheduleIntoPastCancels verifies a request that schedules nothing
// still drops the earlier reminder
func TestRescheduleIntoPastCancels(t *testing.T) {
	h := newHarness(t)
	tk := h.addTask(1, "Train", 3*time.Hour)

	first, _ := h.s.Schedule(context.Background(), tk, 30)
	if first == nil {
		t.Fatal("first reminder not scheduled")
	}
	if again, _ := h.s.Schedule(context.Background(), tk, 240); again != nil {
		t.Fatalf("fire time in the past scheduled %v", again.FireAt())
	}
	if len(h.s.Pending()) != 0 {
		t.Fatal("earlier reminder still pending")
	}
	h.clock.Advance(4 * time.Hour)
	if h.inbox.Len() != 0 {
		t.Errorf("inbox = %d notifications, want 0", h.inbox.Len())
	}
}
